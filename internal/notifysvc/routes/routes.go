package routes

import (
	"github.com/avvvet/deckbuilder-services/internal/notifysvc/handlers"
	"github.com/avvvet/deckbuilder-services/internal/notifysvc/ws"
	"github.com/go-chi/chi"
)

// SetRoutes mounts the socket and health endpoints. Catalog events carry no
// per-user data, so the socket is public.
func SetRoutes(r chi.Router, s *ws.Ws) {
	h := handlers.NewHandler(s)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
