package client

import (
	"time"

	"pulsehr/module/chat/model"
)

// LocalMessage is one entry in the client's optimistic conversation view.
// Key is the temp id until the server confirms the durable id, then the
// durable id; always a string.
type LocalMessage struct {
	Key        string
	SenderID   string
	ReceiverID string
	Text       string
	Status     model.Status
	CreatedAt  time.Time
	IsEdited   bool
	IsDeleted  bool

	readAcked bool // read ack fired for this inbound message
}

// View is the reconciliation layer for one open conversation: the local
// optimistic message list plus the pending-status buffer that absorbs the
// race between send confirmation and status relay.
//
// A message has exactly one tempId -> id transition, applied exactly once
// by ConfirmSend; after that every event keys on the durable id.
type View struct {
	selfID string
	peerID string
	open   bool // conversation currently visible

	msgs    []*LocalMessage
	byKey   map[string]*LocalMessage
	pending *PendingStatus
}

// NewView builds the view for a conversation with peerID. The pending
// buffer is injected: it outlives conversation switches, since a status
// update can name a message from a view not currently loaded.
func NewView(selfID, peerID string, pending *PendingStatus) *View {
	if pending == nil {
		pending = NewPendingStatus()
	}
	return &View{
		selfID:  selfID,
		peerID:  peerID,
		byKey:   make(map[string]*LocalMessage),
		pending: pending,
	}
}

// SetOpen marks the conversation visible. Open conversations mark inbound
// messages read immediately (and owe a read ack for them).
func (v *View) SetOpen(open bool) { v.open = open }

// LoadHistory replaces the view content with server history.
func (v *View) LoadHistory(msgs []*model.Message) {
	v.msgs = v.msgs[:0]
	v.byKey = make(map[string]*LocalMessage, len(msgs))
	for _, m := range msgs {
		lm := &LocalMessage{
			Key:        m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Text:       m.Text,
			Status:     m.Status,
			CreatedAt:  m.CreatedAt,
			IsEdited:   m.IsEdited,
			IsDeleted:  m.IsDeleted,
		}
		v.msgs = append(v.msgs, lm)
		v.byKey[lm.Key] = lm
	}
}

// AppendOutgoing renders a just-composed message optimistically under its
// temp id with status "sending", before the server has seen it.
func (v *View) AppendOutgoing(tempID, text string, at time.Time) *LocalMessage {
	lm := &LocalMessage{
		Key:        tempID,
		SenderID:   v.selfID,
		ReceiverID: v.peerID,
		Text:       text,
		Status:     model.StatusSending,
		CreatedAt:  at,
	}
	v.msgs = append(v.msgs, lm)
	v.byKey[tempID] = lm
	return lm
}

// ConfirmSend applies the server's send confirmation: the one-and-only
// tempId -> id rekey. If a status update for id already raced ahead into
// the pending buffer it is applied now and the buffer entry consumed;
// otherwise the message settles at "sent".
func (v *View) ConfirmSend(tempID, id string, createdAt time.Time) bool {
	lm, ok := v.byKey[tempID]
	if !ok {
		// already confirmed, or a confirmation for another view
		return false
	}

	if buffered, ok := v.pending.Take(id); ok {
		lm.Status = buffered
	} else {
		lm.Status = model.StatusSent
	}
	if !createdAt.IsZero() {
		lm.CreatedAt = createdAt
	}

	delete(v.byKey, tempID)
	lm.Key = id
	v.byKey[id] = lm
	return true
}

// ApplyStatus applies a relayed status update. When the id is not in the
// view yet (the send confirmation lost the race) the status parks in the
// pending buffer for ConfirmSend to drain. A transition that would move an
// existing message backward in sent < delivered < read is ignored.
func (v *View) ApplyStatus(id string, status model.Status) {
	lm, ok := v.byKey[id]
	if !ok {
		v.pending.Put(id, status)
		return
	}
	if !lm.Status.Advances(status) {
		return
	}
	lm.Status = status
}

// AppendIncoming renders a message pushed live from the server, keyed by
// its durable id. The returned flags tell the session which acks to emit:
// delivered always (the message just rendered), read only when the
// conversation is open and this message hasn't been read-acked before.
func (v *View) AppendIncoming(id, senderID, text string, createdAt time.Time, status model.Status) (ackDelivered, ackRead bool) {
	if _, exists := v.byKey[id]; exists {
		// duplicate push, nothing new to render or ack
		return false, false
	}
	lm := &LocalMessage{
		Key:        id,
		SenderID:   senderID,
		ReceiverID: v.selfID,
		Text:       text,
		Status:     status,
		CreatedAt:  createdAt,
	}
	if v.open {
		lm.Status = model.StatusRead
		lm.readAcked = true
	}
	v.msgs = append(v.msgs, lm)
	v.byKey[id] = lm
	return true, lm.readAcked
}

// MarkVisibleRead is called when the conversation becomes visible: the
// most recent inbound message gets read status and owes a read ack, once.
// Returns the ids needing a read ack.
func (v *View) MarkVisibleRead() []string {
	if !v.open {
		return nil
	}
	var ids []string
	for i := len(v.msgs) - 1; i >= 0; i-- {
		lm := v.msgs[i]
		if lm.SenderID == v.selfID {
			continue
		}
		// most recent inbound only
		if !lm.readAcked {
			lm.Status = model.StatusRead
			lm.readAcked = true
			ids = append(ids, lm.Key)
		}
		break
	}
	return ids
}

// ApplyEdit mutates a message's text in place; status is untouched.
func (v *View) ApplyEdit(id, text string) {
	if lm, ok := v.byKey[id]; ok {
		lm.Text = text
		lm.IsEdited = true
	}
}

// ApplyDelete tombstones a message in place: text cleared, flag set, entry
// retained.
func (v *View) ApplyDelete(id string) {
	if lm, ok := v.byKey[id]; ok {
		lm.Text = ""
		lm.IsDeleted = true
	}
}

// Get returns the message under key (temp id or durable id).
func (v *View) Get(key string) (*LocalMessage, bool) {
	lm, ok := v.byKey[key]
	return lm, ok
}

// Messages returns the view's messages in render order.
func (v *View) Messages() []*LocalMessage { return v.msgs }

// Pending exposes the buffer, mainly for tests and diagnostics.
func (v *View) Pending() *PendingStatus { return v.pending }
