// Package handlers wires the inbound wire events to the messaging core.
// Each handler owns its dependencies; the dispatcher only routes.
package handlers

import (
	"context"

	"pulsehr/logger"
	"pulsehr/service/chat"
)

// IdentifyHandler binds a fresh connection to a user identity and triggers
// the presence fan-out. A reconnecting client must identify again; the
// transport coming back alone does not restore registry membership.
type IdentifyHandler struct {
	srv *chat.Server
}

func NewIdentifyHandler(srv *chat.Server) chat.Handler { return &IdentifyHandler{srv: srv} }

func (h *IdentifyHandler) Event() string { return chat.EventIdentify }

func (h *IdentifyHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	p, err := chat.DecodePayload[chat.IdentifyPayload](f)
	if err != nil {
		logger.Infof("[identify] bad payload conn=%s: %v", c.ConnID, err)
		return nil
	}
	h.srv.RegisterClient(p.UserID, c)
	return nil
}
