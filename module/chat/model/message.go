package model

import "time"

// Status is the delivery state of a direct message. The client additionally
// knows a local-only "sending" state for messages not yet acknowledged by
// the server; that state never reaches storage.
type Status string

const (
	StatusSending   Status = "sending" // client-local, pre-confirmation
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// statusRank fixes the forward-only order sent < delivered < read.
// "sending" ranks below everything since it is pre-server.
var statusRank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is one of the storable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// Advances reports whether moving from s to next goes forward in the
// delivery order. Re-applying the same status is not an advance; callers
// treat that as a harmless duplicate.
func (s Status) Advances(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// DeletedPlaceholder is what conversation summaries show for a tombstoned
// message; the row itself keeps an empty text.
const DeletedPlaceholder = "This message was deleted"

// Message is one direct message between two users. Ids are canonical
// strings everywhere above the storage layer, regardless of how storage
// represents them.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Status     Status    `json:"status"`
	IsEdited   bool      `json:"isEdited"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Conversation is the recent-conversations projection: the most recent
// message exchanged with one counterpart. Derived from message rows, never
// stored on its own.
type Conversation struct {
	UserID       string    `json:"id"`   // counterpart id
	Name         string    `json:"name"` // counterpart display name
	Role         string    `json:"role"`
	LastMessage  string    `json:"message"` // tombstone placeholder if deleted
	LastAt       time.Time `json:"time"`
	Status       Status    `json:"status"`
	LastSenderID string    `json:"senderId"`
	Unread       bool      `json:"unread"`
}
