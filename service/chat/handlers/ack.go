package handlers

import (
	"context"

	"pulsehr/logger"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/tools/safe"
)

// AckDeliveredHandler records a receiver's delivery confirmation and
// relays the status change to the original sender.
type AckDeliveredHandler struct {
	svc *chatsvc.ChatService
}

func NewAckDeliveredHandler(svc *chatsvc.ChatService) chat.Handler {
	return &AckDeliveredHandler{svc: svc}
}

func (h *AckDeliveredHandler) Event() string { return chat.EventAckDelivered }

func (h *AckDeliveredHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	handleAck(h.svc.MarkDelivered, f, c)
	return nil
}

// AckReadHandler records a receiver's read confirmation.
type AckReadHandler struct {
	svc *chatsvc.ChatService
}

func NewAckReadHandler(svc *chatsvc.ChatService) chat.Handler {
	return &AckReadHandler{svc: svc}
}

func (h *AckReadHandler) Event() string { return chat.EventAckRead }

func (h *AckReadHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	handleAck(h.svc.MarkRead, f, c)
	return nil
}

func handleAck(mark func(ctx context.Context, id, senderID string) error, f *chat.Frame, c *chat.Client) {
	if c.UserID == "" {
		logger.Infof("[ack] unidentified conn=%s, frame dropped", c.ConnID)
		return
	}
	p, err := chat.DecodePayload[chat.AckPayload](f)
	if err != nil {
		logger.Infof("[ack] bad payload conn=%s: %v", c.ConnID, err)
		return
	}
	event := f.Event
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := mark(ctx, p.ID, p.SenderID); err != nil {
			// Unknown ids are expected under races with send confirmation;
			// nothing to do beyond the log.
			logger.Infof("[ack] %s id=%s: %v", event, p.ID, err)
		}
	})
}
