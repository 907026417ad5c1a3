package service

import (
	"fmt"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
)

const (
	MaxDeckSize = 60
	MaxCopies   = 4
)

func checkAddQuantity(qty int) error {
	if qty < 1 || qty > MaxDeckSize {
		return invariant("Quantity must be between 1 and %d, got %d", MaxDeckSize, qty)
	}
	return nil
}

func checkSetQuantity(qty int) error {
	if qty < 0 || qty > MaxDeckSize {
		return invariant("Quantity must be between 0 and %d, got %d", MaxDeckSize, qty)
	}
	return nil
}

// CheckAdd decides whether qty copies of card may be added to deck.
func CheckAdd(deck *models.Deck, card *models.Card, qty int) error {
	if err := checkAddQuantity(qty); err != nil {
		return err
	}

	currentSize := deck.Size()
	if currentSize+qty > MaxDeckSize {
		return invariant("Cannot add %d cards. Deck would have %d cards (max %d)", qty, currentSize+qty, MaxDeckSize)
	}

	if !card.IsBasicEnergy() {
		existing := 0
		if e := deck.Entry(card.ID); e != nil {
			existing = e.Quantity
		}
		if existing+qty > MaxCopies {
			return invariant("Cannot have more than %d copies of %s (non-basic Energy). Current: %d, Adding: %d",
				MaxCopies, card.Name, existing, qty)
		}
	}
	return nil
}

// CheckSetQuantity decides whether entry may be replaced by qty copies. A zero
// quantity is always allowed: it removes the entry.
func CheckSetQuantity(deck *models.Deck, entry *models.DeckEntry, qty int) error {
	if err := checkSetQuantity(qty); err != nil {
		return err
	}
	if qty == 0 {
		return nil
	}

	if entry.Card != nil && !entry.Card.IsBasicEnergy() && qty > MaxCopies {
		return invariant("Cannot have more than %d copies of %s (non-basic Energy)", MaxCopies, entry.Card.Name)
	}

	size := deck.Size() - entry.Quantity + qty
	if size > MaxDeckSize {
		return invariant("Cannot update. Deck would have %d cards (max %d)", size, MaxDeckSize)
	}
	return nil
}

// Validate reports every rule the deck currently breaks.
func Validate(deck *models.Deck) *models.ValidationResult {
	errs := []string{}
	total := deck.Size()

	if total != MaxDeckSize {
		errs = append(errs, fmt.Sprintf("Deck has %d cards (must be exactly %d)", total, MaxDeckSize))
	}

	for _, e := range deck.Cards {
		if e.Card == nil || e.Card.IsBasicEnergy() {
			continue
		}
		if e.Quantity > MaxCopies {
			errs = append(errs, fmt.Sprintf("%s has %d copies (max %d for non-basic Energy)", e.Card.Name, e.Quantity, MaxCopies))
		}
	}

	return &models.ValidationResult{
		Valid:      len(errs) == 0,
		TotalCards: total,
		Errors:     errs,
	}
}
