package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

type deckNameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req deckNameRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "body must be {\"name\": string}")
		return
	}

	deck, err := h.svc.Decks.CreateDeck(r.Context(), userID(r), req.Name)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.CreateResponse(w, Response{Message: "deck created", Code: http.StatusCreated, Data: deck})
}

func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.svc.Decks.ListDecks(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "decks", decks)
}

func (h *Handler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deck, err := h.svc.Decks.GetDeck(r.Context(), userID(r), chi.URLParam(r, "deckId"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "deck", deck)
}

func (h *Handler) ValidateDeck(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Decks.ValidateDeck(r.Context(), userID(r), chi.URLParam(r, "deckId"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "deck validation", res)
}

func (h *Handler) RenameDeck(w http.ResponseWriter, r *http.Request) {
	var req deckNameRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "body must be {\"name\": string}")
		return
	}

	deck, err := h.svc.Decks.RenameDeck(r.Context(), userID(r), chi.URLParam(r, "deckId"), req.Name)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "deck renamed", deck)
}

func (h *Handler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Decks.DeleteDeck(r.Context(), userID(r), chi.URLParam(r, "deckId")); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "deck deleted", nil)
}

func (h *Handler) AddDeckCard(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := decode(r, &req); err != nil || req.CardID == "" {
		h.badRequest(w, "body must be {\"cardId\": string, \"quantity\": int}")
		return
	}

	entry, err := h.svc.Decks.AddCard(r.Context(), userID(r), chi.URLParam(r, "deckId"), req.CardID, req.Quantity)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.CreateResponse(w, Response{Message: "card added to deck", Code: http.StatusCreated, Data: entry})
}

func (h *Handler) UpdateDeckCard(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decode(r, &req); err != nil || req.Quantity == nil {
		h.badRequest(w, "body must be {\"quantity\": int}")
		return
	}

	entry, err := h.svc.Decks.SetCardQuantity(r.Context(), userID(r), chi.URLParam(r, "deckId"), chi.URLParam(r, "cardId"), *req.Quantity)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if entry == nil {
		h.ok(w, "card removed from deck", nil)
		return
	}
	h.ok(w, "deck card updated", entry)
}

func (h *Handler) RemoveDeckCard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Decks.RemoveCard(r.Context(), userID(r), chi.URLParam(r, "deckId"), chi.URLParam(r, "cardId")); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "card removed from deck", nil)
}
