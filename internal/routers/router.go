package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sagar5412/rapidraw/internal/api"
	"github.com/sagar5412/rapidraw/internal/metrics"
)

// New builds the route table around the handlers.
func New(h *api.Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(metrics.Middleware())

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/api/v1/rooms/{id}", h.RoomState)
	r.Get("/ws", h.Connect)

	return r
}
