package models

import "time"

type Deck struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Name      string       `json:"name"`
	Cards     []*DeckEntry `json:"cards"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type DeckEntry struct {
	DeckID   string `json:"deckId"`
	CardID   string `json:"cardId"`
	Quantity int    `json:"quantity"`
	Card     *Card  `json:"card"`
}

// Size is the total number of cards in the deck.
func (d *Deck) Size() int {
	total := 0
	for _, e := range d.Cards {
		total += e.Quantity
	}
	return total
}

// Entry returns the entry for cardID, or nil.
func (d *Deck) Entry(cardID string) *DeckEntry {
	for _, e := range d.Cards {
		if e.CardID == cardID {
			return e
		}
	}
	return nil
}

type ValidationResult struct {
	Valid      bool     `json:"valid"`
	TotalCards int      `json:"totalCards"`
	Errors     []string `json:"errors"`
}
