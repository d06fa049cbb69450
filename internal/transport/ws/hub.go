// Package ws is the websocket connection layer: it accepts upgrades,
// pumps inbound command envelopes into the arena, and fans outbound
// events to the per-connection writer goroutines.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/Puci-G/rpsServer/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 64
)

// Envelope is the wire frame in both directions: a named event and its
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// conn is one registered websocket with its outbound pump
type conn struct {
	id     model.ConnID
	sock   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

// close makes the writer drain out and the socket shut down. Safe to
// call from any goroutine, any number of times.
func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
	})
}

// Hub tracks live connections and implements the arena's outbound
// Sender. Send never blocks: a peer that cannot drain its buffer loses
// messages rather than stalling the arena.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[model.ConnID]*conn
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[model.ConnID]*conn),
	}
}

// Send marshals and queues one event for a connection. Unknown
// connection ids and full buffers drop the message.
func (h *Hub) Send(id model.ConnID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}

	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- frame:
	default:
		h.logger.Warn("event dropped, connection buffer full",
			slog.String("conn_id", string(id)),
			slog.String("event", event),
		)
	}
}

// Close forces a connection's channel shut, e.g. when a resume on a
// new socket evicts the old one.
func (h *Hub) Close(id model.ConnID) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if ok {
		c.close()
	}
}

// ConnCount returns the number of registered connections
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("connection registered",
		slog.String("conn_id", string(c.id)),
		slog.Int("total_conns", count),
	)
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.id]; ok && cur == c {
		delete(h.conns, c.id)
	}
	count := len(h.conns)
	h.mu.Unlock()
	c.close()
	h.logger.Info("connection unregistered",
		slog.String("conn_id", string(c.id)),
		slog.Int("total_conns", count),
	)
}

// writePump drains the send channel onto the socket until the
// connection closes. Runs in its own goroutine per connection.
func (h *Hub) writePump(c *conn) {
	for {
		select {
		case frame := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.sock.Write(ctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.close()
				return
			}
		case <-c.closed:
			_ = c.sock.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
