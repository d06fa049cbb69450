package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/Puci-G/rpsServer/internal/arena"
	"github.com/Puci-G/rpsServer/internal/model"
)

// Inbound command names
const (
	cmdLogin      = "login"
	cmdResume     = "resume"
	cmdLogout     = "logout"
	cmdJoinQueue  = "joinQueue"
	cmdLeaveQueue = "leaveQueue"
	cmdMakeChoice = "makeChoice"
)

type loginData struct {
	Name string `json:"name"`
}

type resumeData struct {
	ID model.IdentityID `json:"id"`
}

type choiceData struct {
	Choice model.Choice `json:"choice"`
}

// Handler upgrades HTTP requests to websockets and feeds their command
// stream into the arena.
type Handler struct {
	arena  *arena.Arena
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates a websocket handler bound to the given arena and hub
func NewHandler(a *arena.Arena, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{arena: a, hub: hub, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	c := &conn{
		id:     model.ConnID(uuid.NewString()),
		sock:   sock,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
	h.hub.register(c)
	go h.hub.writePump(c)

	defer func() {
		h.arena.Disconnect(c.id)
		h.hub.unregister(c)
	}()

	h.readPump(r.Context(), c)
}

// readPump decodes inbound envelopes until the socket drops or the
// connection is evicted.
func (h *Handler) readPump(ctx context.Context, c *conn) {
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, frame, err := c.sock.Read(ctx)
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.logger.Warn("malformed envelope",
				slog.String("conn_id", string(c.id)),
				slog.String("error", err.Error()),
			)
			continue
		}
		h.dispatch(ctx, c.id, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, id model.ConnID, env Envelope) {
	switch env.Event {
	case cmdLogin:
		var d loginData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		_ = h.arena.Login(ctx, id, d.Name)
	case cmdResume:
		var d resumeData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		_ = h.arena.Resume(ctx, id, d.ID)
	case cmdLogout:
		h.arena.Logout(id)
	case cmdJoinQueue:
		_ = h.arena.JoinQueue(id)
	case cmdLeaveQueue:
		h.arena.LeaveQueue(id)
	case cmdMakeChoice:
		var d choiceData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return
		}
		_ = h.arena.MakeChoice(id, d.Choice)
	default:
		h.logger.Warn("unknown inbound event",
			slog.String("conn_id", string(id)),
			slog.String("event", env.Event),
		)
	}
}
