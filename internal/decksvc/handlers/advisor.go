package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

func (h *Handler) EmbedCards(w http.ResponseWriter, r *http.Request) {
	if h.svc.Advisor == nil {
		h.unavailable(w, "advisor")
		return
	}
	onlyMissing := r.URL.Query().Get("onlyMissing") == "true"

	report, err := h.svc.Advisor.EmbedAll(r.Context(), onlyMissing)
	if err != nil {
		h.fail(w, r, err, report)
		return
	}
	h.ok(w, "embedding finished", report)
}

func (h *Handler) SearchSimilar(w http.ResponseWriter, r *http.Request) {
	if h.svc.Advisor == nil {
		h.unavailable(w, "advisor")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.badRequest(w, "Query is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	hits, err := h.svc.Advisor.Query(r.Context(), q, userID(r), limit)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "similar cards", hits)
}

func (h *Handler) GetAdvice(w http.ResponseWriter, r *http.Request) {
	if h.svc.Advisor == nil {
		h.unavailable(w, "advisor")
		return
	}
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		h.badRequest(w, "question is required")
		return
	}

	advice, err := h.svc.Advisor.Advise(r.Context(), userID(r), question)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "advice", advice)
}
