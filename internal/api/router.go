package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Puci-G/rpsServer/internal/arena"
	"github.com/Puci-G/rpsServer/internal/middleware"
	"github.com/Puci-G/rpsServer/internal/transport/ws"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger *slog.Logger
	Arena  *arena.Arena
	Hub    *ws.Hub
}

// NewRouter creates the HTTP router: the websocket endpoint plus the
// health check.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	wsHandler := ws.NewHandler(cfg.Arena, cfg.Hub, cfg.Logger)
	r.Handle("/ws", wsHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
