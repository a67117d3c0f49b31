package chat

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pulsehr/logger"
	"pulsehr/tools/ids"
)

const sendQueueSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the websocket endpoint: it upgrades connections, runs the
// per-connection read loop, dispatches inbound frames, and keeps the
// presence registry in sync with connect/identify/disconnect.
type Server struct {
	registry Registry
	disp     *Dispatcher
	fanout   *Fanout
}

func NewServer(registry Registry, disp *Dispatcher, fanout *Fanout) *Server {
	return &Server{registry: registry, disp: disp, fanout: fanout}
}

func (s *Server) Registry() Registry      { return s.registry }
func (s *Server) Dispatcher() *Dispatcher { return s.disp }

// CanonicalID normalizes a user identity arriving from the wire or from
// storage. Identity is always a trimmed string; numeric forms are already
// stringified by payload decoding.
func CanonicalID(id string) string { return strings.TrimSpace(id) }

// RegisterClient binds an identified connection to its user and fans the
// updated presence set out to everyone. Re-identifying overwrites any
// previous connection for that user (last connect wins).
func (s *Server) RegisterClient(userID string, c *Client) {
	userID = CanonicalID(userID)
	if userID == "" {
		logger.Warnf("[ws] identify with empty user id conn=%s", c.ConnID)
		return
	}
	// One identity per connection. Accepting a second identity would leave
	// the first registry entry orphaned past disconnect.
	if c.UserID != "" && c.UserID != userID {
		logger.Warnf("[ws] re-identify as different user rejected conn=%s have=%s got=%s",
			c.ConnID, c.UserID, userID)
		return
	}
	c.UserID = userID
	s.registry.Register(userID, c)
	logger.Infof("[ws] online user=%s conn=%s", userID, c.ConnID)
	s.BroadcastPresence()
}

// BroadcastPresence pushes the full online-id set to every connection.
// Full snapshot on every change, not a delta: clients compute online and
// offline purely from set membership in the latest broadcast.
func (s *Server) BroadcastPresence() {
	payload, err := EncodeFrame(EventPresence, s.registry.Snapshot())
	if err != nil {
		logger.Errorf("[ws] encode presence: %v", err)
		return
	}
	s.fanout.Broadcast(s.registry.All(), payload)
}

// PushToUser relays a payload to the user's live connection. Returns false
// when the user is offline or the frame was dropped; the caller never
// retries, history fetch covers the gap.
func (s *Server) PushToUser(userID string, payload []byte) bool {
	c, ok := s.registry.Lookup(CanonicalID(userID))
	if !ok {
		return false
	}
	return c.Push(payload)
}

// HandleWS is the gin handler for the websocket endpoint.
func (s *Server) HandleWS(gc *gin.Context) {
	ws, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), ws, sendQueueSize)
	go client.writePump()

	logger.Infof("[ws] connected conn=%s remote=%s", client.ConnID, ws.RemoteAddr())

	ctx := gc.Request.Context()
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			continue
		}

		if err := s.disp.Dispatch(ctx, f, client); err != nil {
			logger.Infof("[ws] handler err conn=%s event=%s err=%v", client.ConnID, f.Event, err)
		}
	}

	// Disconnect: drop the registry entry for this connection handle (a
	// no-op when a newer connection already replaced it) and fan out the
	// shrunken presence set.
	s.registry.Unregister(client.ConnID)
	s.BroadcastPresence()
	client.Close()
	logger.Infof("[ws] closed conn=%s user=%s", client.ConnID, client.UserID)
}
