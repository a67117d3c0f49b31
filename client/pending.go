package client

import "pulsehr/module/chat/model"

// PendingStatus buffers status updates that arrive before the message they
// name has been reconciled. A status event carries only the durable id; if
// the local view still keys that message by its temp id (the send
// confirmation lost the race), the update parks here until ConfirmSend
// drains it.
//
// Keys are stringified ids. Ids originate both from storage (numeric) and
// from client compose time (numeric temp ids); string keys make the two
// collide correctly instead of missing on type.
type PendingStatus struct {
	byID map[string]model.Status
}

func NewPendingStatus() *PendingStatus {
	return &PendingStatus{byID: make(map[string]model.Status)}
}

// Put records a status for an id not yet present in the view. A later
// status never regresses an earlier buffered one: delivered arriving after
// read leaves read in place.
func (p *PendingStatus) Put(id string, status model.Status) {
	if cur, ok := p.byID[id]; ok && !cur.Advances(status) {
		return
	}
	p.byID[id] = status
}

// Take removes and returns the buffered status for id, if any. Called
// exactly once per id, the moment reconciliation confirms it.
func (p *PendingStatus) Take(id string) (model.Status, bool) {
	s, ok := p.byID[id]
	if ok {
		delete(p.byID, id)
	}
	return s, ok
}

func (p *PendingStatus) Len() int { return len(p.byID) }
