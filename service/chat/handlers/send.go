package handlers

import (
	"context"
	"time"

	"pulsehr/logger"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/tools/safe"
)

const persistTimeout = 5 * time.Second

// SendHandler accepts a new message from an identified connection. The
// persist-and-relay runs off the read loop so one slow write never stalls
// other events from this or any other client; send order across a burst is
// therefore not guaranteed when persistence latency varies.
type SendHandler struct {
	svc *chatsvc.ChatService
}

func NewSendHandler(svc *chatsvc.ChatService) chat.Handler { return &SendHandler{svc: svc} }

func (h *SendHandler) Event() string { return chat.EventSend }

func (h *SendHandler) Handle(_ context.Context, f *chat.Frame, c *chat.Client) error {
	if c.UserID == "" {
		logger.Infof("[send] unidentified conn=%s, frame dropped", c.ConnID)
		return nil
	}
	p, err := chat.DecodePayload[chat.SendPayload](f)
	if err != nil {
		logger.Infof("[send] bad payload conn=%s: %v", c.ConnID, err)
		return nil
	}

	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		// Failure is logged inside Send; the sender's optimistic entry
		// simply stays in "sending".
		_, _ = h.svc.Send(ctx, p.TempID, p.SenderID, p.ReceiverID, p.Text)
	})
	return nil
}
