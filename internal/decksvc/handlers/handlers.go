package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Catalog interface {
	ListCards(ctx context.Context) ([]*models.Card, error)
	GetCard(ctx context.Context, id string) (*models.Card, error)
	SearchCards(ctx context.Context, query, supertype string) ([]*models.Card, error)
	CountCards(ctx context.Context) (int64, error)
}

type Syncer interface {
	Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error)
}

type SyncHistory interface {
	Recent(ctx context.Context, limit int) ([]*models.SyncReport, error)
}

type Collections interface {
	GetCollection(ctx context.Context, userID string) ([]*models.CollectionEntry, error)
	AddToCollection(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error)
	UpdateQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error)
	RemoveFromCollection(ctx context.Context, userID, cardID string) error
	GetCollectionStats(ctx context.Context, userID string) (*models.CollectionStats, error)
}

type Decks interface {
	CreateDeck(ctx context.Context, userID, name string) (*models.Deck, error)
	ListDecks(ctx context.Context, userID string) ([]*models.Deck, error)
	GetDeck(ctx context.Context, userID, deckID string) (*models.Deck, error)
	RenameDeck(ctx context.Context, userID, deckID, name string) (*models.Deck, error)
	DeleteDeck(ctx context.Context, userID, deckID string) error
	AddCard(ctx context.Context, userID, deckID, cardID string, qty int) (*models.DeckEntry, error)
	SetCardQuantity(ctx context.Context, userID, deckID, cardID string, qty int) (*models.DeckEntry, error)
	RemoveCard(ctx context.Context, userID, deckID, cardID string) error
	ValidateDeck(ctx context.Context, userID, deckID string) (*models.ValidationResult, error)
}

type Advisor interface {
	EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error)
	Query(ctx context.Context, text, userID string, limit int) ([]*models.ScoredCard, error)
	Advise(ctx context.Context, userID, question string) (*models.Advice, error)
}

// Services are the collaborators behind the API. History and Advisor may be
// nil; their routes then answer 503.
type Services struct {
	Catalog     Catalog
	Sync        Syncer
	History     SyncHistory
	Collections Collections
	Decks       Decks
	Advisor     Advisor
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	svc       Services

	PageDelay   time.Duration // pacing for filtered on-demand syncs
	SyncTimeout time.Duration
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc, SyncTimeout: 10 * time.Minute}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	h.CreateResponse(w, Response{Message: message, Code: http.StatusOK, Data: data})
}

func (h *Handler) badRequest(w http.ResponseWriter, reason string) {
	h.CreateResponse(w, Response{Message: "bad request", Code: http.StatusBadRequest, Error: reason})
}

// fail maps service errors onto status codes. Reasons of rejected requests
// are passed through; internal errors are logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, data interface{}) {
	rsp := Response{Code: http.StatusInternalServerError, Message: "internal server error", Data: data, Error: "internal server error"}
	switch {
	case errors.Is(err, service.ErrNotFound):
		rsp.Code, rsp.Message, rsp.Error = http.StatusNotFound, "not found", err.Error()
	case errors.Is(err, service.ErrInvariant):
		rsp.Code, rsp.Message, rsp.Error = http.StatusBadRequest, "rule violation", err.Error()
	case errors.Is(err, service.ErrUpstream), errors.Is(err, service.ErrEmbedding):
		rsp.Code, rsp.Message, rsp.Error = http.StatusBadGateway, "upstream failure", err.Error()
	default:
		log.WithField("path", r.URL.Path).Errorf("request failed: %s", err)
	}
	h.CreateResponse(w, rsp)
}

func (h *Handler) unavailable(w http.ResponseWriter, what string) {
	h.CreateResponse(w, Response{Message: what + " is not configured", Code: http.StatusServiceUnavailable, Error: what + " unavailable"})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// userID is the authenticated caller, taken from the token's sub claim.
func userID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// requireUser rejects verified tokens that carry no subject.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: "token has no subject"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "deck service is running at port "+os.Getenv("DECK_SERVICE_PORT"), nil)
}
