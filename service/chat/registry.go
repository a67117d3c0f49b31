package chat

import (
	"sort"
	"sync"
)

// Registry maps a user id to its single live connection. It is the source
// of truth for "who is online": a user is online iff it has an entry here.
//
// Exactly one connection per user. Registering a second connection for the
// same user overwrites the mapping (last connect wins); the previous socket
// is not closed here, it simply stops receiving relays and will clean
// itself up when its transport drops.
type Registry interface {
	// Register upserts the user's live connection.
	Register(userID string, c *Client)
	// Unregister removes every entry whose connection id matches.
	// Disconnect only knows the connection handle, so removal scans by
	// conn id; an unknown id is a no-op, not an error (a newer connection
	// may already have replaced the entry).
	Unregister(connID string)
	// Lookup returns the user's live connection, if any.
	Lookup(userID string) (*Client, bool)
	// Snapshot returns the current online user ids, sorted.
	Snapshot() []string
	// All returns every live connection; used for presence fan-out.
	All() []*Client
}

type memoryRegistry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewMemoryRegistry() Registry {
	return &memoryRegistry{byUser: make(map[string]*Client)}
}

func (r *memoryRegistry) Register(userID string, c *Client) {
	if userID == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = c
}

func (r *memoryRegistry) Unregister(connID string) {
	if connID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for user, c := range r.byUser {
		if c.ConnID == connID {
			delete(r.byUser, user)
		}
	}
}

func (r *memoryRegistry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *memoryRegistry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for user := range r.byUser {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

func (r *memoryRegistry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}
