package handlers

import (
	"errors"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)
			r.Use(requireUser)

			// sync runs hold the request for the whole run
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(h.SyncTimeout))
				r.Post("/cards/sync", h.SyncCards)
				r.Post("/cards/sync/standard", h.SyncFormat("standard"))
				r.Post("/cards/sync/expanded", h.SyncFormat("expanded"))
				r.Post("/cards/sync/set", h.SyncSet)
				r.Post("/advisor/embed", h.EmbedCards)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/cards", h.ListCards)
				r.Get("/cards/search", h.SearchCards)
				r.Get("/cards/count", h.CountCards)
				r.Get("/cards/sync/history", h.SyncHistory)
				r.Get("/cards/{id}", h.GetCard)

				r.Route("/collections", func(r chi.Router) {
					r.Get("/", h.GetCollection)
					r.Get("/stats", h.GetCollectionStats)
					r.Post("/", h.AddToCollection)
					r.Patch("/{cardId}", h.UpdateCollection)
					r.Delete("/{cardId}", h.RemoveFromCollection)
				})

				r.Route("/decks", func(r chi.Router) {
					r.Post("/", h.CreateDeck)
					r.Get("/", h.ListDecks)
					r.Get("/{deckId}", h.GetDeck)
					r.Get("/{deckId}/validate", h.ValidateDeck)
					r.Patch("/{deckId}", h.RenameDeck)
					r.Delete("/{deckId}", h.DeleteDeck)
					r.Post("/{deckId}/cards", h.AddDeckCard)
					r.Patch("/{deckId}/cards/{cardId}", h.UpdateDeckCard)
					r.Delete("/{deckId}/cards/{cardId}", h.RemoveDeckCard)
				})

				r.Get("/advisor/search", h.SearchSimilar)
				r.Get("/advisor/advice", h.GetAdvice)
			})
		})
	})
}

// InitAuth sets the HS256 key used to verify bearer tokens. Tokens are
// issued elsewhere; this service only checks them.
func (h *Handler) InitAuth(secret string) error {
	if secret == "" {
		return errors.New("JWT_SECRET_KEY is not set")
	}
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	log.Info("jwt verifier initialised")
	return nil
}
