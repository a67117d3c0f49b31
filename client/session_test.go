package client

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsehr/module/chat/model"
	chatsvc "pulsehr/module/chat/service"
	"pulsehr/service/chat"
	"pulsehr/service/chat/handlers"
	"pulsehr/tools/errs"
)

// sessStore backs the session tests with in-memory persistence.
type sessStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*model.Message
}

func newSessStore() *sessStore {
	return &sessStore{nextID: 900, rows: make(map[string]*model.Message)}
}

func (s *sessStore) Create(_ context.Context, senderID, receiverID, text string) (*model.Message, error) {
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
	c := *m
	return &c, nil
}

func (s *sessStore) Get(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	c := *m
	return &c, nil
}

func (s *sessStore) UpdateStatus(_ context.Context, id string, status model.Status) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Status = status
	c := *m
	return &c, nil
}

func (s *sessStore) Edit(_ context.Context, id, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Text = text
	m.IsEdited = true
	c := *m
	return &c, nil
}

func (s *sessStore) SoftDelete(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	m.Text = ""
	m.IsDeleted = true
	c := *m
	return &c, nil
}

func (s *sessStore) History(_ context.Context, _, _ string) ([]*model.Message, error) {
	return nil, nil
}

func (s *sessStore) RecentConversations(_ context.Context, _ string) ([]*model.Conversation, error) {
	return nil, nil
}

func startGateway(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := chat.NewMemoryRegistry()
	disp := chat.NewDispatcher()
	srv := chat.NewServer(registry, disp, chat.NewFanout(2, 64))
	svc := chatsvc.NewChatService(newSessStore(), srv)

	disp.Register(handlers.NewIdentifyHandler(srv))
	disp.Register(handlers.NewSendHandler(svc))
	disp.Register(handlers.NewAckDeliveredHandler(svc))
	disp.Register(handlers.NewAckReadHandler(svc))
	disp.Register(handlers.NewEditHandler(svc))
	disp.Register(handlers.NewDeleteHandler(svc))

	r := gin.New()
	r.GET("/ws", srv.HandleWS)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func waitSnapshot(t *testing.T, ch <-chan []string, want ...string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-ch:
			if assert.ObjectsAreEqual(want, got) {
				return
			}
		case <-deadline:
			t.Fatalf("no presence snapshot %v before deadline", want)
		}
	}
}

func rawDial(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	rawEmit(t, ws, chat.EventIdentify, &chat.IdentifyPayload{UserID: userID})
	return ws
}

func rawEmit(t *testing.T, ws *websocket.Conn, event string, payload any) {
	t.Helper()
	raw, err := chat.EncodeFrame(event, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, raw))
}

func rawWaitFor(t *testing.T, ws *websocket.Conn, event string) *chat.Frame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		f, err := chat.ParseFrame(data)
		require.NoError(t, err)
		if f.Event == event {
			return f
		}
	}
	t.Fatalf("no %s frame before deadline", event)
	return nil
}

func TestSessionReconnectReidentifies(t *testing.T) {
	ts, url := startGateway(t)

	snapshots := make(chan []string, 16)
	sess := NewSession(url, "1")
	sess.OnPresence = func(users []string) { snapshots <- users }
	t.Cleanup(sess.Close)

	require.NoError(t, sess.Connect(context.Background()))
	waitSnapshot(t, snapshots, "1")

	// sever every transport; the gateway forgets user 1 entirely
	ts.CloseClientConnections()

	// presence frames only reach registered connections, so any snapshot
	// after the cut proves the session redialed and identified again
	waitSnapshot(t, snapshots, "1")

	bob := rawDial(t, url, "2")
	waitSnapshot(t, snapshots, "1", "2")
	assert.True(t, sess.IsOnline("2"))
	rawWaitFor(t, bob, chat.EventPresence)
}

func TestSessionAcksIncomingMessages(t *testing.T) {
	_, url := startGateway(t)

	snapshots := make(chan []string, 16)
	sess := NewSession(url, "1")
	sess.OnPresence = func(users []string) { snapshots <- users }
	t.Cleanup(sess.Close)

	require.NoError(t, sess.Connect(context.Background()))
	waitSnapshot(t, snapshots, "1")
	sess.Open("2")

	bob := rawDial(t, url, "2")
	rawWaitFor(t, bob, chat.EventPresence)

	rawEmit(t, bob, chat.EventSend, &chat.SendPayload{
		TempID:     "b-1",
		SenderID:   "2",
		ReceiverID: "1",
		Text:       "hello",
	})
	conf := rawWaitFor(t, bob, chat.EventSendConfirmed)
	cp, err := chat.DecodePayload[chat.SendConfirmedPayload](conf)
	require.NoError(t, err)

	// the session renders the push into the open conversation and acks
	// delivered and read on its own; the acks may land in either order,
	// the forward-only guard settles the row at read
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no read status before deadline")
		f := rawWaitFor(t, bob, chat.EventStatus)
		sp, err := chat.DecodePayload[chat.StatusPayload](f)
		require.NoError(t, err)
		require.Equal(t, cp.ID, sp.ID)
		if sp.Status == string(model.StatusRead) {
			break
		}
		require.Equal(t, string(model.StatusDelivered), sp.Status)
	}
}
