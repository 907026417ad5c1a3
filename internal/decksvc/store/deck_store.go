package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DeckWriter mutates one deck while its row lock is held.
type DeckWriter interface {
	SetEntry(ctx context.Context, cardID string, quantity int) error
	DeleteEntry(ctx context.Context, cardID string) error
	Rename(ctx context.Context, name string) error
	Delete(ctx context.Context) error
}

type DeckStore struct {
	db *pgxpool.Pool
}

func NewDeckStore(db *pgxpool.Pool) *DeckStore {
	return &DeckStore{db: db}
}

func (s *DeckStore) CreateDeck(ctx context.Context, userID, name string) (*models.Deck, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	d := &models.Deck{Cards: []*models.DeckEntry{}}
	err := s.db.QueryRow(ctx, `
		INSERT INTO decks (user_id, name)
		VALUES ($1, $2)
		RETURNING id::text, user_id, name, created_at, updated_at
	`, userID, name).Scan(&d.ID, &d.UserID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create deck: %w", err)
	}
	return d, nil
}

// GetDeck loads a deck with its entries. Ownership is the caller's concern.
func (s *DeckStore) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	return loadDeck(ctx, s.db, deckID, false)
}

func (s *DeckStore) ListDecks(ctx context.Context, userID string) ([]*models.Deck, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id, name, created_at, updated_at
		FROM decks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	decks := []*models.Deck{}
	byID := map[string]*models.Deck{}
	for rows.Next() {
		d := &models.Deck{Cards: []*models.DeckEntry{}}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		decks = append(decks, d)
		byID[d.ID] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	entryRows, err := s.db.Query(ctx, `
		SELECT dc.deck_id::text, dc.card_id, dc.quantity, `+cardColumns+`
		FROM deck_cards dc
		JOIN decks d ON d.id = dc.deck_id
		JOIN cards c ON c.id = dc.card_id
		WHERE d.user_id = $1
		ORDER BY c.name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deck cards: %w", err)
	}
	entries, err := collectEntries(entryRows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if d, ok := byID[e.DeckID]; ok {
			d.Cards = append(d.Cards, e)
		}
	}
	return decks, nil
}

// WithDeckLock runs fn in a transaction that holds the deck's row lock
// (SELECT ... FOR UPDATE). The deck handed to fn is read inside that
// transaction, so concurrent mutations of the same deck are serialized and
// each sees the committed result of the previous one. The transaction
// commits only when fn returns nil.
func (s *DeckStore) WithDeckLock(ctx context.Context, deckID string, fn func(ctx context.Context, deck *models.Deck, w DeckWriter) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	deck, err := loadDeck(ctx, tx, deckID, true)
	if err != nil {
		return err
	}

	if err := fn(ctx, deck, &deckTx{tx: tx, deckID: deck.ID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type deckTx struct {
	tx     pgx.Tx
	deckID string
}

func (t *deckTx) SetEntry(ctx context.Context, cardID string, quantity int) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO deck_cards (deck_id, card_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT unique_deck_card DO UPDATE
		SET quantity = EXCLUDED.quantity
	`, t.deckID, cardID, quantity)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("failed to set deck card %s: %w", cardID, err)
	}
	return t.touch(ctx)
}

func (t *deckTx) DeleteEntry(ctx context.Context, cardID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM deck_cards WHERE deck_id = $1 AND card_id = $2`, t.deckID, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete deck card %s: %w", cardID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return t.touch(ctx)
}

func (t *deckTx) Rename(ctx context.Context, name string) error {
	if _, err := t.tx.Exec(ctx, `UPDATE decks SET name = $2, updated_at = now() WHERE id = $1`, t.deckID, name); err != nil {
		return fmt.Errorf("failed to rename deck: %w", err)
	}
	return nil
}

// Delete removes the deck; its entries go with it through ON DELETE CASCADE.
func (t *deckTx) Delete(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM decks WHERE id = $1`, t.deckID); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	return nil
}

func (t *deckTx) touch(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `UPDATE decks SET updated_at = now() WHERE id = $1`, t.deckID)
	return err
}

func loadDeck(ctx context.Context, q querier, deckID string, forUpdate bool) (*models.Deck, error) {
	// a malformed id can never match a row
	if _, err := uuid.Parse(deckID); err != nil {
		return nil, ErrNotFound
	}

	query := `
		SELECT id::text, user_id, name, created_at, updated_at
		FROM decks
		WHERE id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	d := &models.Deck{}
	err := q.QueryRow(ctx, query, deckID).Scan(&d.ID, &d.UserID, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deck %s: %w", deckID, err)
	}

	rows, err := q.Query(ctx, `
		SELECT dc.deck_id::text, dc.card_id, dc.quantity, `+cardColumns+`
		FROM deck_cards dc
		JOIN cards c ON c.id = dc.card_id
		WHERE dc.deck_id = $1
		ORDER BY c.name ASC
	`, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deck cards: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	d.Cards = entries
	return d, nil
}

func collectEntries(rows pgx.Rows) ([]*models.DeckEntry, error) {
	defer rows.Close()

	entries := []*models.DeckEntry{}
	for rows.Next() {
		e := &models.DeckEntry{}
		card, err := scanCard(prefixScanner{rows, []any{&e.DeckID, &e.CardID, &e.Quantity}})
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
