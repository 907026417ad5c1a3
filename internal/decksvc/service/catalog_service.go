package service

import (
	"context"
	"errors"
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
)

const (
	listLimit   = 100
	searchLimit = 50
)

type CardRepository interface {
	CardGetter
	ListCards(ctx context.Context, limit int) ([]*models.Card, error)
	SearchCards(ctx context.Context, query, supertype string, limit int) ([]*models.Card, error)
	CountCards(ctx context.Context) (int64, error)
}

// CatalogService is the read side of the card catalog.
type CatalogService struct {
	store CardRepository
}

func NewCatalogService(store CardRepository) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) ListCards(ctx context.Context) ([]*models.Card, error) {
	return orEmpty(s.store.ListCards(ctx, listLimit))
}

func (s *CatalogService) GetCard(ctx context.Context, id string) (*models.Card, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Card %s not found", id)
		}
		return nil, err
	}
	return card, nil
}

func (s *CatalogService) SearchCards(ctx context.Context, query, supertype string) ([]*models.Card, error) {
	return orEmpty(s.store.SearchCards(ctx, strings.TrimSpace(query), strings.TrimSpace(supertype), searchLimit))
}

func (s *CatalogService) CountCards(ctx context.Context) (int64, error) {
	return s.store.CountCards(ctx)
}

func orEmpty(cards []*models.Card, err error) ([]*models.Card, error) {
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	return cards, nil
}
