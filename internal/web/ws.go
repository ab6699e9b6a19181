package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/dwell"
	"github.com/thisis/placesguard/internal/visual"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 16 << 10
)

// Client message types.
const (
	msgMount      = "mount"
	msgVisibility = "visibility"
)

// Server message types.
const (
	msgResolution = "resolution"
	msgOutcome    = "outcome"
	msgError      = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientMessage is sent by the UI: one mount, then visibility ratios as the
// card scrolls.
type clientMessage struct {
	Type  string      `json:"type"`
	Card  *VisualCard `json:"card,omitempty"`
	Ratio float64     `json:"ratio,omitempty"`
}

// serverMessage carries a resolution to render, the final outcome, or an error.
type serverMessage struct {
	Type       string             `json:"type"`
	Resolution *visual.Resolution `json:"resolution,omitempty"`
	Outcome    visual.Outcome     `json:"outcome,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// visualConn serialises writes to one socket.
type visualConn struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
}

func (c *visualConn) send(msg serverMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("visual socket write failed", zap.Error(err))
	}
}

// HandleVisualSocket handles GET /v1/visual/ws. The socket drives one card:
// the initial resolution is pushed on mount, visibility ratios feed the
// dwell trigger, and the upgraded resolution is pushed if the remote photo
// loads. Closing the socket unmounts the card.
func (h *Handlers) HandleVisualSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("visual socket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	vc := &visualConn{conn: conn, logger: h.logger}
	var (
		trigger *dwell.Trigger
		mount   *visual.Mount
	)
	defer func() {
		if mount != nil {
			mount.Close()
		}
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("visual socket read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case msgMount:
			if mount != nil {
				vc.send(serverMessage{Type: msgError, Error: "card already mounted"})
				continue
			}
			if msg.Card == nil {
				vc.send(serverMessage{Type: msgError, Error: "card is required"})
				continue
			}
			trigger = h.svc.NewTrigger(nil)
			mount = h.svc.Resolver().Mount(ctx, msg.Card.input().Request(), trigger, func(res visual.Resolution) {
				vc.send(serverMessage{Type: msgResolution, Resolution: &res})
			})
			go func(m *visual.Mount) {
				<-m.Done()
				if out := m.Outcome(); out != visual.Cancelled {
					vc.send(serverMessage{Type: msgOutcome, Outcome: out})
				}
			}(mount)

		case msgVisibility:
			if trigger == nil {
				vc.send(serverMessage{Type: msgError, Error: "mount a card first"})
				continue
			}
			trigger.Observe(msg.Ratio)

		default:
			vc.send(serverMessage{Type: msgError, Error: "unknown message type " + msg.Type})
		}
	}
}
