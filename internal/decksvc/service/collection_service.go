package service

import (
	"context"
	"errors"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
)

// CollectionRepository stores (user, card) -> quantity. AddQuantity must be
// atomic per pair.
type CollectionRepository interface {
	AddQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error)
	SetQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error)
	Delete(ctx context.Context, userID, cardID string) error
	List(ctx context.Context, userID string) ([]*models.CollectionEntry, error)
}

// CollectionService struct represents the collection service layer
type CollectionService struct {
	store CollectionRepository
	cards CardGetter
}

func NewCollectionService(store CollectionRepository, cards CardGetter) *CollectionService {
	return &CollectionService{store: store, cards: cards}
}

func (s *CollectionService) GetCollection(ctx context.Context, userID string) ([]*models.CollectionEntry, error) {
	entries, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.CollectionEntry{}
	}
	return entries, nil
}

// AddToCollection creates the entry on first add and increments it afterwards.
func (s *CollectionService) AddToCollection(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	if quantity < 1 {
		return nil, invariant("Quantity must be at least 1, got %d", quantity)
	}

	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Card %s not found", cardID)
		}
		return nil, err
	}

	entry, err := s.store.AddQuantity(ctx, userID, cardID, quantity)
	if err != nil {
		return nil, err
	}
	entry.Card = card
	return entry, nil
}

// UpdateQuantity replaces the owned quantity; zero deletes the entry and
// returns a nil entry.
func (s *CollectionService) UpdateQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	if quantity < 0 {
		return nil, invariant("Quantity must not be negative, got %d", quantity)
	}

	if quantity == 0 {
		if err := s.store.Delete(ctx, userID, cardID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, notFound("Card not in collection")
			}
			return nil, err
		}
		return nil, nil
	}

	entry, err := s.store.SetQuantity(ctx, userID, cardID, quantity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Card not in collection")
		}
		return nil, err
	}
	return entry, nil
}

func (s *CollectionService) RemoveFromCollection(ctx context.Context, userID, cardID string) error {
	if err := s.store.Delete(ctx, userID, cardID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Card not in collection")
		}
		return err
	}
	return nil
}

// GetCollectionStats counts a multi-type card's full quantity under each of
// its types.
func (s *CollectionService) GetCollectionStats(ctx context.Context, userID string) (*models.CollectionStats, error) {
	entries, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.CollectionStats{ByType: map[string]int{}}
	for _, e := range entries {
		stats.TotalCards += e.Quantity
		stats.UniqueCards++
		if e.Card == nil {
			continue
		}
		for _, t := range e.Card.Types {
			stats.ByType[t] += e.Quantity
		}
	}
	return stats, nil
}
