package chat

import (
	"context"
	"fmt"
)

// Handler processes one inbound wire event. Handlers are constructed with
// their dependencies and registered on the dispatcher by event name.
type Handler interface {
	Event() string
	Handle(ctx context.Context, f *Frame, c *Client) error
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) Dispatch(ctx context.Context, f *Frame, c *Client) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return fmt.Errorf("no handler for event=%s", f.Event)
	}
	return h.Handle(ctx, f, c)
}
