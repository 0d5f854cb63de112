package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/veroide/mergehost/internal/server"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			status, err := queryHostStatus(cfg.Addr)
			if err != nil {
				return err
			}
			writeHostStatusOutput(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Host address to query")
	return cmd
}

func writeHostStatusOutput(w io.Writer, status *server.StatusResponse) {
	fmt.Fprintf(w, "Host Status\n")
	fmt.Fprintf(w, "===========\n")
	fmt.Fprintf(w, "Listening:    %s\n", status.ListeningAddress)
	fmt.Fprintf(w, "TLS:          %v\n", status.TLSEnabled)
	fmt.Fprintf(w, "Provider:     %v\n", status.ProviderEnabled)
	fmt.Fprintf(w, "Sync:         %v\n", status.SyncEnabled)
	fmt.Fprintf(w, "Clients:      %d connected\n", status.ConnectedClients)
	fmt.Fprintf(w, "Sessions:     %d open\n", status.OpenSessions)
	fmt.Fprintf(w, "Uptime:       %s\n", formatUptime(status.UptimeSeconds))
}

// queryHostStatus tries HTTPS first, then plain HTTP.
func queryHostStatus(addr string) (*server.StatusResponse, error) {
	resp, err := queryHostStatusWithScheme("https", addr)
	if err == nil {
		return resp, nil
	}
	resp, err = queryHostStatusWithScheme("http", addr)
	if err != nil {
		return nil, fmt.Errorf("host is not running at %s (or not reachable)", addr)
	}
	return resp, nil
}

func queryHostStatusWithScheme(scheme, addr string) (*server.StatusResponse, error) {
	// Hosts commonly run with self-signed certificates.
	client := &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	resp, err := client.Get(fmt.Sprintf("%s://%s/status", scheme, addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &status, nil
}

// formatUptime renders seconds as e.g. "45s", "5m 23s", "2h 15m", "3d 4h".
func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}
