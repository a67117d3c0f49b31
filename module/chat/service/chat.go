package service

import (
	"context"

	"pulsehr/logger"
	"pulsehr/module/chat/model"
	"pulsehr/service/chat"
	"pulsehr/service/storage"
	"pulsehr/tools/errs"
)

// Gateway is the live-relay collaborator: best-effort push to a user's
// current connection. Satisfied by *chat.Server.
type Gateway interface {
	PushToUser(userID string, payload []byte) bool
}

// ChatService drives the message lifecycle: persist first, then relay to
// whichever party is online. Every push is best effort and never retried;
// a missed relay is recovered by the next history fetch.
type ChatService struct {
	store storage.MessageStore
	gw    Gateway
}

func NewChatService(store storage.MessageStore, gw Gateway) *ChatService {
	return &ChatService{store: store, gw: gw}
}

// Send persists a new message, confirms the durable id back to the sender
// (tempId -> id reconciliation), and relays the message to the receiver if
// online. Offline receivers see the message on their next history fetch.
func (s *ChatService) Send(ctx context.Context, tempID, senderID, receiverID, text string) (*model.Message, error) {
	senderID = chat.CanonicalID(senderID)
	receiverID = chat.CanonicalID(receiverID)
	if senderID == "" || receiverID == "" || text == "" {
		return nil, errs.ErrArgs.WithDetail("sender/receiver/text required")
	}

	msg, err := s.store.Create(ctx, senderID, receiverID, text)
	if err != nil {
		// The sender's optimistic entry stays in "sending"; no error is
		// surfaced over the wire. Known v1 gap, logged loudly.
		logger.Errorf("[chat] persist send failed sender=%s receiver=%s: %v", senderID, receiverID, err)
		return nil, err
	}

	s.push(senderID, chat.EventSendConfirmed, &chat.SendConfirmedPayload{
		TempID:    tempID,
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
	})
	s.push(receiverID, chat.EventMessage, &chat.MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt,
		Status:     string(msg.Status),
	})
	return msg, nil
}

// MarkDelivered records the receiver's delivery ack and relays the status
// to the original sender.
func (s *ChatService) MarkDelivered(ctx context.Context, id, senderID string) error {
	return s.advanceStatus(ctx, id, senderID, model.StatusDelivered)
}

// MarkRead records the receiver's read ack and relays it to the sender.
func (s *ChatService) MarkRead(ctx context.Context, id, senderID string) error {
	return s.advanceStatus(ctx, id, senderID, model.StatusRead)
}

// advanceStatus is persist-then-relay with a forward-only guard: a
// transition that would move the status backward in sent < delivered <
// read is dropped as a stale duplicate.
func (s *ChatService) advanceStatus(ctx context.Context, id, senderID string, next model.Status) error {
	id = chat.CanonicalID(id)
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !cur.Status.Advances(next) {
		logger.Debug("[chat] stale status transition ignored")
		return nil
	}

	msg, err := s.store.UpdateStatus(ctx, id, next)
	if err != nil {
		return err
	}
	// Relay targets the other party relative to the acking receiver; the
	// ack names the sender so no extra lookup is needed.
	s.push(chat.CanonicalID(senderID), chat.EventStatus, &chat.StatusPayload{
		ID:     msg.ID,
		Status: string(msg.Status),
	})
	return nil
}

// Edit replaces a message's text and relays the edit to the counterpart.
// Only the author may edit.
func (s *ChatService) Edit(ctx context.Context, actorID, id, text string) (*model.Message, error) {
	actorID = chat.CanonicalID(actorID)
	id = chat.CanonicalID(id)
	if text == "" {
		return nil, errs.ErrArgs.WithDetail("text required")
	}

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.SenderID != actorID {
		return nil, errs.ErrNotAuthorized.WithDetail("only the author may edit")
	}

	msg, err := s.store.Edit(ctx, id, text)
	if err != nil {
		return nil, err
	}
	s.push(counterpart(msg, actorID), chat.EventEdited, &chat.EditedPayload{ID: msg.ID, Text: msg.Text})
	return msg, nil
}

// Delete tombstones a message (the row survives with cleared text) and
// relays the deletion to the counterpart. Only the author may delete.
func (s *ChatService) Delete(ctx context.Context, actorID, id string) (*model.Message, error) {
	actorID = chat.CanonicalID(actorID)
	id = chat.CanonicalID(id)

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.SenderID != actorID {
		return nil, errs.ErrNotAuthorized.WithDetail("only the author may delete")
	}

	msg, err := s.store.SoftDelete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.push(counterpart(msg, actorID), chat.EventDeleted, &chat.DeletedPayload{ID: msg.ID})
	return msg, nil
}

// History returns the full message history between two users, tombstones
// included.
func (s *ChatService) History(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	return s.store.History(ctx, chat.CanonicalID(userA), chat.CanonicalID(userB))
}

// RecentConversations returns the per-counterpart conversation summaries.
func (s *ChatService) RecentConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return s.store.RecentConversations(ctx, chat.CanonicalID(userID))
}

func (s *ChatService) push(userID, event string, payload any) {
	data, err := chat.EncodeFrame(event, payload)
	if err != nil {
		logger.Errorf("[chat] encode %s: %v", event, err)
		return
	}
	if !s.gw.PushToUser(userID, data) {
		logger.Debug("[chat] no live connection, relay skipped")
	}
}

func counterpart(m *model.Message, actorID string) string {
	if m.SenderID == actorID {
		return m.ReceiverID
	}
	return m.SenderID
}
