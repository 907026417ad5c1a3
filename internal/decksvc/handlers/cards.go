package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/go-chi/chi"
)

const historyLimit = 20

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Catalog.ListCards(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "cards", cards)
}

func (h *Handler) SearchCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := h.svc.Catalog.SearchCards(r.Context(), q.Get("q"), q.Get("supertype"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "cards", cards)
}

func (h *Handler) CountCards(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Catalog.CountCards(r.Context())
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "card count", map[string]int64{"count": n})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.svc.Catalog.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "card", card)
}

func (h *Handler) SyncCards(w http.ResponseWriter, r *http.Request) {
	pages, ok := h.pages(w, r)
	if !ok {
		return
	}
	h.runSync(w, r, service.UnfilteredSync(pages))
}

// SyncFormat returns the handler syncing cards legal in format.
func (h *Handler) SyncFormat(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, ok := h.pages(w, r)
		if !ok {
			return
		}
		h.runSync(w, r, service.FormatSync(format, pages, h.PageDelay))
	}
}

func (h *Handler) SyncSet(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		h.badRequest(w, "name is required")
		return
	}
	h.runSync(w, r, service.SetSync(name, h.PageDelay))
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, req service.SyncRequest) {
	req.Trigger = "api"
	report, err := h.svc.Sync.Sync(r.Context(), req)
	if err != nil {
		h.fail(w, r, err, report)
		return
	}
	h.ok(w, "sync finished", report)
}

func (h *Handler) SyncHistory(w http.ResponseWriter, r *http.Request) {
	if h.svc.History == nil {
		h.unavailable(w, "sync history")
		return
	}
	reports, err := h.svc.History.Recent(r.Context(), historyLimit)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	h.ok(w, "sync history", reports)
}

// pages reads the optional pages query parameter; zero means the preset's
// default.
func (h *Handler) pages(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("pages")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > service.DefaultSetPageLimit {
		h.badRequest(w, "pages must be an integer between 1 and "+strconv.Itoa(service.DefaultSetPageLimit))
		return 0, false
	}
	return n, true
}
