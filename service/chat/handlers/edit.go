package handlers

import (
	"context"

	"pulsehr/logger"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/tools/safe"
)

// EditHandler applies an author's edit and relays it to the counterpart.
type EditHandler struct {
	svc *chatsvc.ChatService
}

func NewEditHandler(svc *chatsvc.ChatService) chat.Handler { return &EditHandler{svc: svc} }

func (h *EditHandler) Event() string { return chat.EventEdit }

func (h *EditHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	if c.UserID == "" {
		logger.Infof("[edit] unidentified conn=%s, frame dropped", c.ConnID)
		return nil
	}
	p, err := chat.DecodePayload[chat.EditPayload](f)
	if err != nil {
		logger.Infof("[edit] bad payload conn=%s: %v", c.ConnID, err)
		return nil
	}
	actor := c.UserID
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if _, err := h.svc.Edit(ctx, actor, p.ID, p.Text); err != nil {
			logger.Infof("[edit] id=%s user=%s: %v", p.ID, actor, err)
		}
	})
	return nil
}

// DeleteHandler tombstones a message and relays the deletion.
type DeleteHandler struct {
	svc *chatsvc.ChatService
}

func NewDeleteHandler(svc *chatsvc.ChatService) chat.Handler { return &DeleteHandler{svc: svc} }

func (h *DeleteHandler) Event() string { return chat.EventDelete }

func (h *DeleteHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	if c.UserID == "" {
		logger.Infof("[delete] unidentified conn=%s, frame dropped", c.ConnID)
		return nil
	}
	p, err := chat.DecodePayload[chat.DeletePayload](f)
	if err != nil {
		logger.Infof("[delete] bad payload conn=%s: %v", c.ConnID, err)
		return nil
	}
	actor := c.UserID
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if _, err := h.svc.Delete(ctx, actor, p.ID); err != nil {
			logger.Infof("[delete] id=%s user=%s: %v", p.ID, actor, err)
		}
	})
	return nil
}
