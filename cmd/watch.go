package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every message a running host broadcasts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				url = "ws://" + cfg.Addr + "/ws"
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), url)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "WebSocket URL (default: ws://<addr>/ws)")
	return cmd
}

// watch prints one line per message until ctx ends or the host hangs up.
func watch(ctx context.Context, w io.Writer, url string) error {
	dialer := *websocket.DefaultDialer
	dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()
	fmt.Fprintf(w, "Connected to %s\n", url)

	done := make(chan struct{})
	var count atomic.Int64
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Fprintf(w, "[%d] %s\n", count.Add(1), summarize(data))
		}
	}()

	select {
	case <-done:
		fmt.Fprintln(w, "Connection closed")
	case <-ctx.Done():
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
	fmt.Fprintf(w, "Total messages received: %d\n", count.Load())
	return nil
}

// summarize renders a message as "type key=value ..." with the fields a
// reader cares about.
func summarize(data []byte) string {
	var msg struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Payload struct {
			SessionID string `json:"session_id"`
			ID        string `json:"id"`
			CanCommit *bool  `json:"can_commit"`
			Reason    string `json:"reason"`
			Code      string `json:"code"`
			Message   string `json:"message"`
			Success   *bool  `json:"success"`
			File      struct {
				Path  string `json:"path"`
				State string `json:"state"`
			} `json:"file"`
			Sessions []json.RawMessage `json:"sessions"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return "raw " + string(data)
	}

	p := msg.Payload
	out := msg.Type
	if msg.ID != "" {
		out += " id=" + msg.ID
	}
	switch msg.Type {
	case "session.list":
		out += fmt.Sprintf(" sessions=%d", len(p.Sessions))
	case "session.state":
		out += " session=" + p.ID
	case "file.state":
		out += fmt.Sprintf(" session=%s file=%s state=%s", p.SessionID, p.File.Path, p.File.State)
	case "commit.result":
		out += " session=" + p.SessionID
		if p.Success != nil {
			out += fmt.Sprintf(" success=%v", *p.Success)
		}
	case "session.closed":
		out += fmt.Sprintf(" session=%s reason=%s", p.SessionID, p.Reason)
	case "error":
		out += fmt.Sprintf(" code=%s message=%q", p.Code, p.Message)
	}
	if p.CanCommit != nil {
		out += fmt.Sprintf(" can_commit=%v", *p.CanCommit)
	}
	return out
}
