package server

import (
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

// The handlers below mutate one file and broadcast its new state to every
// client. Failures go to the requester only.

func (c *Client) handleHunkResolve(id string, data []byte) {
	p, err := decodePayload[HunkResolvePayload](data)
	if err == nil {
		err = required("session_id", p.SessionID, "file_path", p.FilePath, "hunk_id", p.HunkID)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	kind, err := resolve.ParseKind(p.Kind)
	if err != nil {
		c.sendError(id, err)
		return
	}
	update, err := c.server.manager.Resolve(c.server.ctx, p.SessionID, p.FilePath, p.HunkID, kind, p.CustomText)
	c.finishMutation(id, update, err)
}

func (c *Client) handleHunkUnresolve(id string, data []byte) {
	p, err := decodePayload[HunkRefPayload](data)
	if err == nil {
		err = required("session_id", p.SessionID, "file_path", p.FilePath, "hunk_id", p.HunkID)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	update, err := c.server.manager.Unresolve(c.server.ctx, p.SessionID, p.FilePath, p.HunkID)
	c.finishMutation(id, update, err)
}

func (c *Client) handleFileOverride(id string, data []byte) {
	p, err := decodePayload[FileOverridePayload](data)
	if err == nil {
		err = required("session_id", p.SessionID, "file_path", p.FilePath)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	update, err := c.server.manager.Override(c.server.ctx, p.SessionID, p.FilePath, p.Content)
	c.finishMutation(id, update, err)
}

func (c *Client) handleFileClearOverride(id string, data []byte) {
	p, err := decodePayload[FileRefPayload](data)
	if err == nil {
		err = required("session_id", p.SessionID, "file_path", p.FilePath)
	}
	if err != nil {
		c.sendError(id, err)
		return
	}
	update, err := c.server.manager.ClearOverride(c.server.ctx, p.SessionID, p.FilePath)
	c.finishMutation(id, update, err)
}

func (c *Client) finishMutation(id string, update session.FileUpdate, err error) {
	if err != nil {
		c.sendError(id, err)
		return
	}
	c.server.Broadcast(NewFileStateMessage(id, update))
}
