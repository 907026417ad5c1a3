package service

import (
	"context"
	"errors"
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
)

// CardGetter resolves catalog cards by id.
type CardGetter interface {
	GetCard(ctx context.Context, id string) (*models.Card, error)
}

// DeckRepository is the persistence the deck rules run against. WithDeckLock
// must serialize callers per deck id.
type DeckRepository interface {
	CreateDeck(ctx context.Context, userID, name string) (*models.Deck, error)
	GetDeck(ctx context.Context, deckID string) (*models.Deck, error)
	ListDecks(ctx context.Context, userID string) ([]*models.Deck, error)
	WithDeckLock(ctx context.Context, deckID string, fn func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error) error
}

// DeckService is the only writer of deck contents.
type DeckService struct {
	store DeckRepository
	cards CardGetter
}

func NewDeckService(store DeckRepository, cards CardGetter) *DeckService {
	return &DeckService{store: store, cards: cards}
}

func (s *DeckService) CreateDeck(ctx context.Context, userID, name string) (*models.Deck, error) {
	name, err := deckName(name)
	if err != nil {
		return nil, err
	}
	return s.store.CreateDeck(ctx, userID, name)
}

func (s *DeckService) ListDecks(ctx context.Context, userID string) ([]*models.Deck, error) {
	return s.store.ListDecks(ctx, userID)
}

// GetDeck returns the deck if userID owns it. A deck owned by someone else is
// reported exactly like a missing one.
func (s *DeckService) GetDeck(ctx context.Context, userID, deckID string) (*models.Deck, error) {
	deck, err := s.store.GetDeck(ctx, deckID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Deck not found")
		}
		return nil, err
	}
	if deck.UserID != userID {
		return nil, notFound("Deck not found")
	}
	return deck, nil
}

func (s *DeckService) RenameDeck(ctx context.Context, userID, deckID, name string) (*models.Deck, error) {
	name, err := deckName(name)
	if err != nil {
		return nil, err
	}
	err = s.mutate(ctx, userID, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		return w.Rename(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDeck(ctx, userID, deckID)
}

func (s *DeckService) DeleteDeck(ctx context.Context, userID, deckID string) error {
	return s.mutate(ctx, userID, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		return w.Delete(ctx)
	})
}

// AddCard adds qty copies of cardID, creating the entry or incrementing it.
func (s *DeckService) AddCard(ctx context.Context, userID, deckID, cardID string, qty int) (*models.DeckEntry, error) {
	if err := checkAddQuantity(qty); err != nil {
		return nil, err
	}

	var entry *models.DeckEntry
	err := s.mutate(ctx, userID, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		card, err := s.cards.GetCard(ctx, cardID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("Card %s not found", cardID)
			}
			return err
		}

		if err := CheckAdd(deck, card, qty); err != nil {
			return err
		}

		newQty := qty
		if existing := deck.Entry(cardID); existing != nil {
			newQty += existing.Quantity
		}
		if err := w.SetEntry(ctx, cardID, newQty); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound("Card %s not found", cardID)
			}
			return err
		}
		entry = &models.DeckEntry{DeckID: deck.ID, CardID: cardID, Quantity: newQty, Card: card}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SetCardQuantity replaces the stored quantity. Zero removes the entry and
// returns a nil entry.
func (s *DeckService) SetCardQuantity(ctx context.Context, userID, deckID, cardID string, qty int) (*models.DeckEntry, error) {
	if err := checkSetQuantity(qty); err != nil {
		return nil, err
	}

	var entry *models.DeckEntry
	err := s.mutate(ctx, userID, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		existing := deck.Entry(cardID)
		if existing == nil {
			return notFound("Card not in deck")
		}

		if qty == 0 {
			return w.DeleteEntry(ctx, cardID)
		}

		if err := CheckSetQuantity(deck, existing, qty); err != nil {
			return err
		}
		if err := w.SetEntry(ctx, cardID, qty); err != nil {
			return err
		}
		entry = &models.DeckEntry{DeckID: deck.ID, CardID: cardID, Quantity: qty, Card: existing.Card}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *DeckService) RemoveCard(ctx context.Context, userID, deckID, cardID string) error {
	return s.mutate(ctx, userID, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		if deck.Entry(cardID) == nil {
			return notFound("Card not in deck")
		}
		return w.DeleteEntry(ctx, cardID)
	})
}

func (s *DeckService) ValidateDeck(ctx context.Context, userID, deckID string) (*models.ValidationResult, error) {
	deck, err := s.GetDeck(ctx, userID, deckID)
	if err != nil {
		return nil, err
	}
	return Validate(deck), nil
}

// mutate resolves and locks the deck, checks ownership, then runs fn.
func (s *DeckService) mutate(ctx context.Context, userID, deckID string, fn func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error) error {
	err := s.store.WithDeckLock(ctx, deckID, func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error {
		if deck.UserID != userID {
			return notFound("Deck not found")
		}
		return fn(ctx, deck, w)
	})
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Deck not found")
	}
	return err
}

func deckName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invariant("Deck name must not be empty")
	}
	return name, nil
}
