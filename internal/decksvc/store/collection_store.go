package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CollectionStore struct {
	db *pgxpool.Pool
}

func NewCollectionStore(db *pgxpool.Pool) *CollectionStore {
	return &CollectionStore{db: db}
}

// AddQuantity creates the (user, card) entry or increments it in a single
// statement, so concurrent adds for the same pair never lose an update.
func (r *CollectionStore) AddQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	query := `
        INSERT INTO collections (user_id, card_id, quantity)
        VALUES ($1, $2, $3)
        ON CONFLICT ON CONSTRAINT unique_user_card DO UPDATE
        SET quantity = collections.quantity + EXCLUDED.quantity, updated_at = now()
        RETURNING user_id, card_id, quantity, created_at, updated_at;
    `

	e := &models.CollectionEntry{}
	err := r.db.QueryRow(ctx, query, userID, cardID, quantity).Scan(
		&e.UserID, &e.CardID, &e.Quantity, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("could not add card %s to collection: %w", cardID, err)
	}
	return e, nil
}

func (r *CollectionStore) SetQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	e := &models.CollectionEntry{}
	err := r.db.QueryRow(ctx, `
        UPDATE collections
        SET quantity = $3, updated_at = now()
        WHERE user_id = $1 AND card_id = $2
        RETURNING user_id, card_id, quantity, created_at, updated_at
    `, userID, cardID, quantity).Scan(&e.UserID, &e.CardID, &e.Quantity, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not update collection entry %s: %w", cardID, err)
	}
	return e, nil
}

func (r *CollectionStore) Delete(ctx context.Context, userID, cardID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM collections WHERE user_id = $1 AND card_id = $2`, userID, cardID)
	if err != nil {
		return fmt.Errorf("could not delete collection entry %s: %w", cardID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's entries with their cards, ordered by card name.
func (r *CollectionStore) List(ctx context.Context, userID string) ([]*models.CollectionEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT col.user_id, col.card_id, col.quantity, col.created_at, col.updated_at, `+cardColumns+`
        FROM collections col
        JOIN cards c ON c.id = col.card_id
        WHERE col.user_id = $1
        ORDER BY c.name ASC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("could not list collection: %w", err)
	}
	defer rows.Close()

	var entries []*models.CollectionEntry
	for rows.Next() {
		e := &models.CollectionEntry{}
		card, err := scanCard(prefixScanner{rows, []any{&e.UserID, &e.CardID, &e.Quantity, &e.CreatedAt, &e.UpdatedAt}})
		if err != nil {
			return nil, err
		}
		e.Card = card
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// prefixScanner lets scanCard read a row whose card columns follow other columns.
type prefixScanner struct {
	row    scanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}
