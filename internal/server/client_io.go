package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/veroide/mergehost/internal/errors"
)

// closeSend signals the client to shut down. Safe to call more than once.
// Only done is closed, never send, so concurrent senders can't panic.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains send onto the connection and pings periodically.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				logger().Error("failed to marshal message", "type", msg.Type, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger().Debug("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads requests until the connection drops, dispatching each by
// type. Handlers that talk to remote services run on their own goroutine so
// one slow commit doesn't stall this client's other requests.
func (c *Client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()

		c.closeSend()
		logger().Info("client disconnected", "remaining", c.server.ClientCount())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				logger().Warn("read failed", "err", err)
			}
			return
		}

		var msg struct {
			Type MessageType `json:"type"`
			ID   string      `json:"id"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", apperrors.InvalidMessage("message is not valid JSON"))
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.sendError(msg.ID, apperrors.New(apperrors.CodeServerRateLimited, "too many requests"))
			continue
		}

		switch msg.Type {
		case MessageTypeSessionOpen:
			go c.handleSessionOpen(msg.ID, data)
		case MessageTypeSessionGet:
			c.handleSessionGet(msg.ID, data)
		case MessageTypeSessionList:
			c.handleSessionList(msg.ID)
		case MessageTypeHunkResolve:
			c.handleHunkResolve(msg.ID, data)
		case MessageTypeHunkUnresolve:
			c.handleHunkUnresolve(msg.ID, data)
		case MessageTypeFileOverride:
			c.handleFileOverride(msg.ID, data)
		case MessageTypeFileClearOverride:
			c.handleFileClearOverride(msg.ID, data)
		case MessageTypeSessionCommit:
			go c.handleSessionCommit(msg.ID, data)
		case MessageTypeSessionCancel:
			c.handleSessionCancel(msg.ID, data)
		default:
			c.sendError(msg.ID, apperrors.InvalidMessage("unknown message type "+string(msg.Type)))
		}
	}
}

// sendMessage queues msg for this client only. It drops the message rather
// than block when the client has fallen behind.
func (c *Client) sendMessage(msg Message) {
	select {
	case <-c.done:
		return
	case c.send <- msg:
	default:
		logger().Warn("client send buffer full, dropping message", "type", msg.Type)
	}
}

// sendError reports err to this client under the request id.
func (c *Client) sendError(id string, err error) {
	code, message := apperrors.ToCodeAndMessage(err)
	c.sendMessage(NewErrorMessage(id, code, message))
}
