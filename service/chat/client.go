package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pulsehr/logger"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 25 * time.Second
)

// Client is one connected websocket session. UserID is empty until the
// connection identifies itself; until then nothing is relayed to it beyond
// presence snapshots it is not part of.
type Client struct {
	ConnID string
	UserID string // set by the identify handler

	WS   *websocket.Conn
	Send chan []byte // outbound queue, drained by the single writer goroutine

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewClient(connID string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Push enqueues a payload without blocking. A closed client refuses the
// frame and a full queue drops it; live relays are best effort and the
// client recovers state from history on its next fetch.
//
// The Send channel is never closed: fanout workers and relays may race a
// disconnect, so shutdown is a flag checked here under the same lock, not
// a channel close.
func (c *Client) Push(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[ws] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

// Close marks the client down and signals the writer goroutine, which
// sends the close frame and closes the socket. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// writePump is the only goroutine allowed to write to the socket. It
// drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.WS.Close()
	}()

	for {
		select {
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Infof("[ws] ping err conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		}
	}
}
