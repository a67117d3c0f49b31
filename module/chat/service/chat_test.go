package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsehr/module/chat/model"
	"pulsehr/service/chat"
	"pulsehr/tools/errs"
)

// memStore is an in-memory MessageStore for lifecycle tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*model.Message
	order  []string
}

func newMemStore() *memStore {
	return &memStore{nextID: 100, rows: make(map[string]*model.Message)}
}

func (s *memStore) Create(_ context.Context, senderID, receiverID, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strconv.FormatInt(s.nextID, 10)
	s.nextID++
	m := &model.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Status:     model.StatusSent,
		CreatedAt:  time.Now().UTC(),
	}
	s.rows[id] = m
	s.order = append(s.order, id)
	return copyMsg(m), nil
}

func (s *memStore) Get(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return copyMsg(m), nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status model.Status) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Status = status
	return copyMsg(m), nil
}

func (s *memStore) Edit(_ context.Context, id, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Text = text
	m.IsEdited = true
	return copyMsg(m), nil
}

func (s *memStore) SoftDelete(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Text = ""
	m.IsDeleted = true
	return copyMsg(m), nil
}

func (s *memStore) History(_ context.Context, userA, userB string) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, id := range s.order {
		m := s.rows[id]
		if (m.SenderID == userA && m.ReceiverID == userB) ||
			(m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, copyMsg(m))
		}
	}
	return out, nil
}

func (s *memStore) RecentConversations(_ context.Context, userID string) ([]*model.Conversation, error) {
	return nil, nil
}

func copyMsg(m *model.Message) *model.Message {
	c := *m
	return &c
}

// recordingGateway captures pushed frames per user; only listed users count
// as online.
type recordingGateway struct {
	mu     sync.Mutex
	online map[string]bool
	frames map[string][]*chat.Frame
}

func newRecordingGateway(online ...string) *recordingGateway {
	g := &recordingGateway{online: make(map[string]bool), frames: make(map[string][]*chat.Frame)}
	for _, u := range online {
		g.online[u] = true
	}
	return g
}

func (g *recordingGateway) PushToUser(userID string, payload []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.online[userID] {
		return false
	}
	f, err := chat.ParseFrame(payload)
	if err != nil {
		panic(err)
	}
	g.frames[userID] = append(g.frames[userID], f)
	return true
}

func (g *recordingGateway) framesFor(userID string) []*chat.Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*chat.Frame(nil), g.frames[userID]...)
}

func TestSendPersistsThenRelaysBothParties(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1", "2")
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, model.StatusSent, msg.Status)

	sender := gw.framesFor("1")
	require.Len(t, sender, 1)
	assert.Equal(t, chat.EventSendConfirmed, sender[0].Event)
	conf, err := chat.DecodePayload[chat.SendConfirmedPayload](sender[0])
	require.NoError(t, err)
	assert.Equal(t, "tmp-1", conf.TempID)
	assert.Equal(t, msg.ID, conf.ID)

	receiver := gw.framesFor("2")
	require.Len(t, receiver, 1)
	assert.Equal(t, chat.EventMessage, receiver[0].Event)
	mp, err := chat.DecodePayload[chat.MessagePayload](receiver[0])
	require.NoError(t, err)
	assert.Equal(t, msg.ID, mp.ID)
	assert.Equal(t, "hi", mp.Text)
	assert.Equal(t, string(model.StatusSent), mp.Status)
}

func TestSendOfflineReceiverStillPersists(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1") // receiver offline
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)

	assert.Empty(t, gw.framesFor("2"))

	// the receiver recovers it from history
	hist, err := svc.History(context.Background(), "2", "1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, msg.ID, hist[0].ID)
}

func TestSendValidatesArgs(t *testing.T) {
	svc := NewChatService(newMemStore(), newRecordingGateway())

	_, err := svc.Send(context.Background(), "tmp-1", "", "2", "hi")
	assert.True(t, errors.Is(err, errs.ErrArgs))

	_, err = svc.Send(context.Background(), "tmp-1", "1", "2", "")
	assert.True(t, errors.Is(err, errs.ErrArgs))
}

func TestMarkDeliveredRelaysStatusToSender(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1", "2")
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)

	require.NoError(t, svc.MarkDelivered(context.Background(), msg.ID, "1"))

	stored, err := store.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, stored.Status)

	sender := gw.framesFor("1")
	require.Len(t, sender, 2) // send_confirmed then status
	assert.Equal(t, chat.EventStatus, sender[1].Event)
	sp, err := chat.DecodePayload[chat.StatusPayload](sender[1])
	require.NoError(t, err)
	assert.Equal(t, msg.ID, sp.ID)
	assert.Equal(t, string(model.StatusDelivered), sp.Status)
}

func TestStaleStatusTransitionIgnored(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1", "2")
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), msg.ID, "1"))
	before := len(gw.framesFor("1"))

	// a late delivered ack must not move read back
	require.NoError(t, svc.MarkDelivered(context.Background(), msg.ID, "1"))

	stored, err := store.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRead, stored.Status)
	assert.Len(t, gw.framesFor("1"), before, "stale transition relays nothing")
}

func TestStatusUnknownMessage(t *testing.T) {
	svc := NewChatService(newMemStore(), newRecordingGateway())

	err := svc.MarkDelivered(context.Background(), "999", "1")
	assert.True(t, errors.Is(err, errs.ErrRecordNotFound))
}

func TestEditAuthorOnly(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1", "2")
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), "2", msg.ID, "hacked")
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	edited, err := svc.Edit(context.Background(), "1", msg.ID, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", edited.Text)
	assert.True(t, edited.IsEdited)

	receiver := gw.framesFor("2")
	last := receiver[len(receiver)-1]
	assert.Equal(t, chat.EventEdited, last.Event)
	ep, err := chat.DecodePayload[chat.EditedPayload](last)
	require.NoError(t, err)
	assert.Equal(t, "hi there", ep.Text)
}

func TestDeleteTombstonesAndKeepsRow(t *testing.T) {
	store := newMemStore()
	gw := newRecordingGateway("1", "2")
	svc := NewChatService(store, gw)

	msg, err := svc.Send(context.Background(), "tmp-1", "1", "2", "hi")
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), "2", msg.ID)
	assert.True(t, errors.Is(err, errs.ErrNotAuthorized))

	deleted, err := svc.Delete(context.Background(), "1", msg.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Text)

	receiver := gw.framesFor("2")
	last := receiver[len(receiver)-1]
	assert.Equal(t, chat.EventDeleted, last.Event)

	// the tombstone survives in history
	hist, err := svc.History(context.Background(), "1", "2")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].IsDeleted)
}
