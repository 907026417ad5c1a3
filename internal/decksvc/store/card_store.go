package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

var ErrNotFound = errors.New("not found")

const cardColumns = `c.id, c.name, c.supertype, c.subtypes, c.hp, c.types, c.abilities, c.attacks,
	c.weaknesses, c.resistances, c.retreat_cost, c.rules, c.image_small, c.image_large,
	c.set_id, c.set_name, c.created_at, c.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

type CardStore struct {
	db *pgxpool.Pool
}

func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

// UpsertCard inserts the card or fully replaces the mutable fields of the
// existing row with the same id. updated_at is only touched on the update path.
func (s *CardStore) UpsertCard(ctx context.Context, card *models.Card) error {
	abilities, err := encodeOptional(card.Abilities)
	if err != nil {
		return fmt.Errorf("encode abilities for %s: %w", card.ID, err)
	}
	attacks, err := encodeOptional(card.Attacks)
	if err != nil {
		return fmt.Errorf("encode attacks for %s: %w", card.ID, err)
	}
	weaknesses, err := encodeOptional(card.Weaknesses)
	if err != nil {
		return fmt.Errorf("encode weaknesses for %s: %w", card.ID, err)
	}
	resistances, err := encodeOptional(card.Resistances)
	if err != nil {
		return fmt.Errorf("encode resistances for %s: %w", card.ID, err)
	}

	const query = `
INSERT INTO cards (
    id, name, supertype, subtypes, hp, types, abilities, attacks, weaknesses,
    resistances, retreat_cost, rules, image_small, image_large, set_id, set_name
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
    name         = EXCLUDED.name,
    supertype    = EXCLUDED.supertype,
    subtypes     = EXCLUDED.subtypes,
    hp           = EXCLUDED.hp,
    types        = EXCLUDED.types,
    abilities    = EXCLUDED.abilities,
    attacks      = EXCLUDED.attacks,
    weaknesses   = EXCLUDED.weaknesses,
    resistances  = EXCLUDED.resistances,
    retreat_cost = EXCLUDED.retreat_cost,
    rules        = EXCLUDED.rules,
    image_small  = EXCLUDED.image_small,
    image_large  = EXCLUDED.image_large,
    set_id       = EXCLUDED.set_id,
    set_name     = EXCLUDED.set_name,
    updated_at   = now()
`
	_, err = s.db.Exec(ctx, query,
		card.ID, card.Name, card.Supertype, nonNil(card.Subtypes), card.HP, nonNil(card.Types),
		abilities, attacks, weaknesses, resistances,
		nonNil(card.RetreatCost), nonNil(card.Rules),
		card.ImageSmall, card.ImageLarge, card.SetID, card.SetName,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", card.ID, err)
	}
	return nil
}

func (s *CardStore) GetCard(ctx context.Context, id string) (*models.Card, error) {
	row := s.db.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.id = $1`, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

func (s *CardStore) ListCards(ctx context.Context, limit int) ([]*models.Card, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cardColumns+` FROM cards c ORDER BY c.name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return collectCards(rows)
}

// SearchCards matches query case-insensitively against the card and set names.
// An empty supertype matches every supertype.
func (s *CardStore) SearchCards(ctx context.Context, query, supertype string, limit int) ([]*models.Card, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		WHERE (c.name ILIKE $1 OR c.set_name ILIKE $1)
		  AND ($2::text = '' OR c.supertype = $2::text)
		ORDER BY c.name ASC
		LIMIT $3
	`, pattern, supertype, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	return collectCards(rows)
}

func (s *CardStore) CountCards(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

// CardsAfter pages through the catalog by id. With onlyMissing set, cards that
// already carry an embedding are skipped.
func (s *CardStore) CardsAfter(ctx context.Context, afterID string, limit int, onlyMissing bool) ([]*models.Card, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		WHERE c.id > $1
		  AND (NOT $2::boolean OR c.embedding IS NULL)
		ORDER BY c.id ASC
		LIMIT $3
	`, afterID, onlyMissing, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to page cards after %q: %w", afterID, err)
	}
	return collectCards(rows)
}

func (s *CardStore) SetEmbedding(ctx context.Context, cardID string, embedding []float32) error {
	tag, err := s.db.Exec(ctx, `UPDATE cards SET embedding = $1::vector WHERE id = $2`,
		pgvector.NewVector(embedding), cardID)
	if err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", cardID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CardDistance is a card paired with its cosine distance to a query vector.
type CardDistance struct {
	Card     *models.Card
	Distance float64
}

// NearestOwned ranks the cards in userID's collection by cosine distance to
// the query vector. Cards without an embedding are never candidates.
func (s *CardStore) NearestOwned(ctx context.Context, userID string, embedding []float32, limit int) ([]CardDistance, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+cardColumns+`, c.embedding <=> $1::vector AS distance
		FROM cards c
		INNER JOIN collections col ON c.id = col.card_id
		WHERE col.user_id = $2
		  AND c.embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT $3
	`, pgvector.NewVector(embedding), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar cards: %w", err)
	}
	defer rows.Close()

	var hits []CardDistance
	for rows.Next() {
		var distance float64
		card, err := scanCard(rows, &distance)
		if err != nil {
			return nil, err
		}
		hits = append(hits, CardDistance{Card: card, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func collectCards(rows pgx.Rows) ([]*models.Card, error) {
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return cards, nil
}

// scanCard reads the cardColumns projection, followed by any extra columns.
func scanCard(row scanner, extra ...any) (*models.Card, error) {
	var (
		card                                        models.Card
		abilities, attacks, weaknesses, resistances []byte
	)
	dest := []any{
		&card.ID, &card.Name, &card.Supertype, &card.Subtypes, &card.HP, &card.Types,
		&abilities, &attacks, &weaknesses, &resistances,
		&card.RetreatCost, &card.Rules, &card.ImageSmall, &card.ImageLarge,
		&card.SetID, &card.SetName, &card.CreatedAt, &card.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if card.Abilities, err = decodeOptional[models.Ability](abilities); err != nil {
		return nil, fmt.Errorf("decode abilities for %s: %w", card.ID, err)
	}
	if card.Attacks, err = decodeOptional[models.Attack](attacks); err != nil {
		return nil, fmt.Errorf("decode attacks for %s: %w", card.ID, err)
	}
	if card.Weaknesses, err = decodeOptional[models.TypeModifier](weaknesses); err != nil {
		return nil, fmt.Errorf("decode weaknesses for %s: %w", card.ID, err)
	}
	if card.Resistances, err = decodeOptional[models.TypeModifier](resistances); err != nil {
		return nil, fmt.Errorf("decode resistances for %s: %w", card.ID, err)
	}
	return &card, nil
}

// encodeOptional maps an absent list to SQL NULL and a present one, even if
// empty, to its JSON form.
func encodeOptional[T any](v *[]T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if *v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(*v)
}

func decodeOptional[T any](raw []byte) (*[]T, error) {
	if raw == nil || string(raw) == "null" {
		return nil, nil
	}
	out := []T{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
