package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
)

type addCardRequest struct {
	CardID   string `json:"cardId"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Collections.GetCollection(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "collection", entries)
}

func (h *Handler) GetCollectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Collections.GetCollectionStats(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "collection stats", stats)
}

func (h *Handler) AddToCollection(w http.ResponseWriter, r *http.Request) {
	var req addCardRequest
	if err := decode(r, &req); err != nil || req.CardID == "" {
		h.badRequest(w, "body must be {\"cardId\": string, \"quantity\": int}")
		return
	}

	entry, err := h.svc.Collections.AddToCollection(r.Context(), userID(r), req.CardID, req.Quantity)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.CreateResponse(w, Response{Message: "card added to collection", Code: http.StatusCreated, Data: entry})
}

func (h *Handler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decode(r, &req); err != nil || req.Quantity == nil {
		h.badRequest(w, "body must be {\"quantity\": int}")
		return
	}

	entry, err := h.svc.Collections.UpdateQuantity(r.Context(), userID(r), chi.URLParam(r, "cardId"), *req.Quantity)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if entry == nil {
		h.ok(w, "card removed from collection", nil)
		return
	}
	h.ok(w, "collection updated", entry)
}

func (h *Handler) RemoveFromCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Collections.RemoveFromCollection(r.Context(), userID(r), chi.URLParam(r, "cardId")); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "card removed from collection", nil)
}
