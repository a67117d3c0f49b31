package storage

import (
	"context"

	"pulsehr/module/chat/model"
)

// MessageStore is the persistence collaborator for the messaging core. The
// gateway only ever talks to this interface; the concrete implementation
// lives in pg.go.
type MessageStore interface {
	// Create persists a new message with status "sent" and a server-side
	// UTC timestamp, and returns it with its durable id assigned.
	Create(ctx context.Context, senderID, receiverID, text string) (*model.Message, error)

	// Get returns a message by id.
	Get(ctx context.Context, id string) (*model.Message, error)

	// UpdateStatus sets the delivery status of a message by id.
	UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Message, error)

	// Edit replaces the text of a message and flags it edited.
	Edit(ctx context.Context, id, text string) (*model.Message, error)

	// SoftDelete tombstones a message: the row is kept, the text cleared,
	// and is_deleted set. The id stays visible to history queries.
	SoftDelete(ctx context.Context, id string) (*model.Message, error)

	// History returns every message between two users, oldest first,
	// tombstones included.
	History(ctx context.Context, userA, userB string) ([]*model.Message, error)

	// RecentConversations returns the most recent message per counterpart
	// for a user, newest first.
	RecentConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
}
