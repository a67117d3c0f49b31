package client

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pulsehr/logger"
	"pulsehr/module/chat/model"
	"pulsehr/service/chat"
	"pulsehr/tools/ids"
)

const (
	dialTimeout    = 5 * time.Second
	reconnectFloor = 500 * time.Millisecond
	reconnectCeil  = 10 * time.Second
)

// Session is the client side of the chat channel: one websocket, one
// identity, a reconciliation view per counterpart, and a shared pending
// buffer. Sends are fire-and-forget once rendered optimistically; there is
// no cancel and no retry.
type Session struct {
	selfID string
	url    string

	mu      sync.Mutex
	ws      *websocket.Conn
	writeMu sync.Mutex

	pending    *PendingStatus
	views      map[string]*View // by counterpart id
	online     map[string]bool  // latest presence snapshot
	activePeer string

	closed  chan struct{}
	closeMu sync.Once

	// OnPresence, when set, observes every presence snapshot.
	OnPresence func(users []string)
}

func NewSession(url, selfID string) *Session {
	return &Session{
		selfID:  chat.CanonicalID(selfID),
		url:     url,
		pending: NewPendingStatus(),
		views:   make(map[string]*View),
		online:  make(map[string]bool),
		closed:  make(chan struct{}),
	}
}

// Connect dials, identifies, and starts the read loop. The loop redials
// with backoff until Close; every reconnect re-identifies, since the
// server forgets this user the moment the old transport drops.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.dial(ctx); err != nil {
		return err
	}
	go s.readLoop()
	return nil
}

func (s *Session) dial(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	ws, _, err := websocket.DefaultDialer.DialContext(dctx, s.url, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	return s.emit(chat.EventIdentify, &chat.IdentifyPayload{UserID: s.selfID})
}

func (s *Session) Close() {
	s.closeMu.Do(func() { close(s.closed) })
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

// SendText renders the message optimistically and transmits it. Returns
// the temp id the view keys it under until the server confirms.
func (s *Session) SendText(peerID, text string) string {
	peerID = chat.CanonicalID(peerID)
	tempID := ids.GenerateString()

	s.mu.Lock()
	v := s.viewLocked(peerID)
	v.AppendOutgoing(tempID, text, time.Now())
	s.mu.Unlock()

	if err := s.emit(chat.EventSend, &chat.SendPayload{
		TempID:     tempID,
		SenderID:   s.selfID,
		ReceiverID: peerID,
		Text:       text,
	}); err != nil {
		// stays in "sending"; surfaced by the UI, never retried here
		logger.Infof("[session] send transmit failed temp=%s: %v", tempID, err)
	}
	return tempID
}

// Open makes peerID's conversation the visible one and fires read acks for
// the newest unread inbound message.
func (s *Session) Open(peerID string) *View {
	peerID = chat.CanonicalID(peerID)

	s.mu.Lock()
	if s.activePeer != "" && s.activePeer != peerID {
		s.viewLocked(s.activePeer).SetOpen(false)
	}
	s.activePeer = peerID
	v := s.viewLocked(peerID)
	v.SetOpen(true)
	readIDs := v.MarkVisibleRead()
	s.mu.Unlock()

	for _, id := range readIDs {
		s.ackRead(id, peerID)
	}
	return v
}

// View returns the reconciliation view for a counterpart.
func (s *Session) View(peerID string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(chat.CanonicalID(peerID))
}

// IsOnline reports membership in the most recent presence snapshot.
func (s *Session) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[chat.CanonicalID(userID)]
}

func (s *Session) viewLocked(peerID string) *View {
	v, ok := s.views[peerID]
	if !ok {
		v = NewView(s.selfID, peerID, s.pending)
		s.views[peerID] = v
	}
	return v
}

func (s *Session) readLoop() {
	backoff := reconnectFloor
	for {
		s.mu.Lock()
		ws := s.ws
		s.mu.Unlock()

		_, data, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			logger.Infof("[session] read err, reconnecting in %s: %v", backoff, err)
			time.Sleep(backoff)
			if backoff *= 2; backoff > reconnectCeil {
				backoff = reconnectCeil
			}
			if derr := s.dial(context.Background()); derr != nil {
				logger.Infof("[session] redial failed: %v", derr)
			}
			continue
		}
		backoff = reconnectFloor

		f, perr := chat.ParseFrame(data)
		if perr != nil {
			logger.Infof("[session] bad frame: %v", perr)
			continue
		}
		s.handleFrame(f)
	}
}

func (s *Session) handleFrame(f *chat.Frame) {
	switch f.Event {
	case chat.EventSendConfirmed:
		p, err := chat.DecodePayload[chat.SendConfirmedPayload](f)
		if err != nil {
			logger.Infof("[session] bad send_confirmed: %v", err)
			return
		}
		s.mu.Lock()
		for _, v := range s.views {
			if v.ConfirmSend(p.TempID, p.ID, p.CreatedAt) {
				break
			}
		}
		s.mu.Unlock()

	case chat.EventMessage:
		p, err := chat.DecodePayload[chat.MessagePayload](f)
		if err != nil {
			logger.Infof("[session] bad message: %v", err)
			return
		}
		peer := chat.CanonicalID(p.SenderID)
		s.mu.Lock()
		v := s.viewLocked(peer)
		ackDelivered, ackRead := v.AppendIncoming(p.ID, peer, p.Text, p.CreatedAt, model.Status(p.Status))
		s.mu.Unlock()
		if ackDelivered {
			if err := s.emit(chat.EventAckDelivered, &chat.AckPayload{ID: p.ID, SenderID: peer}); err != nil {
				logger.Infof("[session] delivered ack failed id=%s: %v", p.ID, err)
			}
		}
		if ackRead {
			s.ackRead(p.ID, peer)
		}

	case chat.EventStatus:
		p, err := chat.DecodePayload[chat.StatusPayload](f)
		if err != nil {
			logger.Infof("[session] bad status: %v", err)
			return
		}
		s.mu.Lock()
		s.applyStatusLocked(p.ID, model.Status(p.Status))
		s.mu.Unlock()

	case chat.EventEdited:
		p, err := chat.DecodePayload[chat.EditedPayload](f)
		if err != nil {
			return
		}
		s.mu.Lock()
		for _, v := range s.views {
			v.ApplyEdit(p.ID, p.Text)
		}
		s.mu.Unlock()

	case chat.EventDeleted:
		p, err := chat.DecodePayload[chat.DeletedPayload](f)
		if err != nil {
			return
		}
		s.mu.Lock()
		for _, v := range s.views {
			v.ApplyDelete(p.ID)
		}
		s.mu.Unlock()

	case chat.EventPresence:
		users, err := chat.DecodeStringList(f)
		if err != nil {
			logger.Infof("[session] bad presence: %v", err)
			return
		}
		s.mu.Lock()
		s.online = make(map[string]bool, len(users))
		for _, u := range users {
			s.online[u] = true
		}
		s.mu.Unlock()
		if s.OnPresence != nil {
			s.OnPresence(users)
		}

	default:
		logger.Infof("[session] unhandled event %s", f.Event)
	}
}

// applyStatusLocked routes a status update to the view that knows the id;
// an id no view knows yet parks in the shared pending buffer.
func (s *Session) applyStatusLocked(id string, status model.Status) {
	for _, v := range s.views {
		if _, ok := v.Get(id); ok {
			v.ApplyStatus(id, status)
			return
		}
	}
	s.pending.Put(id, status)
}

func (s *Session) ackRead(id, senderID string) {
	if err := s.emit(chat.EventAckRead, &chat.AckPayload{ID: id, SenderID: senderID}); err != nil {
		logger.Infof("[session] read ack failed id=%s: %v", id, err)
	}
}

func (s *Session) emit(event string, payload any) error {
	data, err := chat.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

const writeWait = 10 * time.Second
