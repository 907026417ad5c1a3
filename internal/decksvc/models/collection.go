package models

import "time"

// CollectionEntry is one owned card. Quantity is always positive; a zero
// quantity is represented by the absence of the entry.
type CollectionEntry struct {
	UserID    string    `json:"userId"`
	CardID    string    `json:"cardId"`
	Quantity  int       `json:"quantity"`
	Card      *Card     `json:"card,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CollectionStats struct {
	TotalCards  int            `json:"totalCards"`
	UniqueCards int            `json:"uniqueCards"`
	ByType      map[string]int `json:"byType"`
}
