package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/metrics"
	"github.com/sagar5412/rapidraw/internal/registry"
	"github.com/sagar5412/rapidraw/internal/session"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handlers bundles the HTTP surface: the websocket gateway endpoint, a
// read-only room-state projection, and health.
type Handlers struct {
	logger   *zap.Logger
	registry *registry.Registry
	gateway  *session.Gateway
}

func NewHandlers(logger *zap.Logger, reg *registry.Registry, gateway *session.Gateway) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{logger: logger, registry: reg, gateway: gateway}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// RoomState serves the same projection a joining client receives, or 404
// for unknown rooms.
func (h *Handlers) RoomState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	state, ok := h.registry.RoomState(roomID)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "room_not_found"})
		return
	}
	writeJSON(w, state)
}

// Connect upgrades the request to a websocket and hands the connection to
// the gateway until it closes.
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.ConnectedClients.Inc()
	defer metrics.ConnectedClients.Dec()

	h.gateway.Serve(conn)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
