package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
)

func strPtr(s string) *string { return &s }

func pokemon(id, name string, types ...string) *models.Card {
	return &models.Card{ID: id, Name: name, Supertype: "Pokémon", Subtypes: []string{"Basic"}, Types: types, HP: strPtr("60")}
}

func basicEnergy(id, name string) *models.Card {
	return &models.Card{ID: id, Name: name, Supertype: models.SupertypeEnergy, Subtypes: []string{"Basic"}, Types: []string{}}
}

func specialEnergy(id, name string) *models.Card {
	return &models.Card{ID: id, Name: name, Supertype: models.SupertypeEnergy, Subtypes: []string{"Special"}, Types: []string{}}
}

// fakeCards is an in-memory catalog with an optional vector per card.
type fakeCards struct {
	mu        sync.Mutex
	cards     map[string]*models.Card
	vectors   map[string][]float32
	upsertErr map[string]error
	owned     *fakeCollections
	upserts   int
}

func newFakeCards(cards ...*models.Card) *fakeCards {
	f := &fakeCards{cards: map[string]*models.Card{}, vectors: map[string][]float32{}, upsertErr: map[string]error{}}
	for _, c := range cards {
		f.cards[c.ID] = c
	}
	return f
}

func (f *fakeCards) GetCard(ctx context.Context, id string) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCards) UpsertCard(ctx context.Context, card *models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[card.ID]; err != nil {
		return err
	}
	f.upserts++
	if old, ok := f.cards[card.ID]; ok {
		now := time.Now()
		card.CreatedAt = old.CreatedAt
		card.UpdatedAt = &now
	} else {
		card.CreatedAt = time.Now()
	}
	f.cards[card.ID] = card
	return nil
}

func (f *fakeCards) sortedIDs() []string {
	ids := make([]string, 0, len(f.cards))
	for id := range f.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeCards) ListCards(ctx context.Context, limit int) ([]*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Card
	for _, id := range f.sortedIDs() {
		if len(out) == limit {
			break
		}
		out = append(out, f.cards[id])
	}
	return out, nil
}

func (f *fakeCards) SearchCards(ctx context.Context, query, supertype string, limit int) ([]*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Card
	q := strings.ToLower(query)
	for _, id := range f.sortedIDs() {
		c := f.cards[id]
		if supertype != "" && c.Supertype != supertype {
			continue
		}
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.SetName), q) {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCards) CountCards(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.cards)), nil
}

func (f *fakeCards) CardsAfter(ctx context.Context, afterID string, limit int, onlyMissing bool) ([]*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Card
	for _, id := range f.sortedIDs() {
		if id <= afterID {
			continue
		}
		if _, has := f.vectors[id]; onlyMissing && has {
			continue
		}
		out = append(out, f.cards[id])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeCards) SetEmbedding(ctx context.Context, cardID string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cards[cardID]; !ok {
		return store.ErrNotFound
	}
	f.vectors[cardID] = embedding
	return nil
}

func (f *fakeCards) NearestOwned(ctx context.Context, userID string, embedding []float32, limit int) ([]store.CardDistance, error) {
	owned := map[string]bool{}
	if f.owned != nil {
		for _, e := range f.owned.entries(userID) {
			owned[e.CardID] = true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.CardDistance
	for id, vec := range f.vectors {
		if !owned[id] {
			continue
		}
		out = append(out, store.CardDistance{Card: f.cards[id], Distance: 1 - cosineSimilarity(embedding, vec)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// fakeCollections keeps one quantity per (user, card); every call is atomic.
type fakeCollections struct {
	mu    sync.Mutex
	qty   map[string]map[string]int
	cards *fakeCards
}

func newFakeCollections(cards *fakeCards) *fakeCollections {
	f := &fakeCollections{qty: map[string]map[string]int{}, cards: cards}
	cards.owned = f
	return f
}

func (f *fakeCollections) AddQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.qty[userID] == nil {
		f.qty[userID] = map[string]int{}
	}
	f.qty[userID][cardID] += quantity
	return &models.CollectionEntry{UserID: userID, CardID: cardID, Quantity: f.qty[userID][cardID]}, nil
}

func (f *fakeCollections) SetQuantity(ctx context.Context, userID, cardID string, quantity int) (*models.CollectionEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.qty[userID][cardID]; !ok {
		return nil, store.ErrNotFound
	}
	f.qty[userID][cardID] = quantity
	return &models.CollectionEntry{UserID: userID, CardID: cardID, Quantity: quantity}, nil
}

func (f *fakeCollections) Delete(ctx context.Context, userID, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.qty[userID][cardID]; !ok {
		return store.ErrNotFound
	}
	delete(f.qty[userID], cardID)
	return nil
}

func (f *fakeCollections) List(ctx context.Context, userID string) ([]*models.CollectionEntry, error) {
	entries := f.entries(userID)
	for _, e := range entries {
		card, err := f.cards.GetCard(ctx, e.CardID)
		if err != nil {
			return nil, err
		}
		e.Card = card
	}
	return entries, nil
}

func (f *fakeCollections) entries(userID string) []*models.CollectionEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CollectionEntry
	for cardID, q := range f.qty[userID] {
		out = append(out, &models.CollectionEntry{UserID: userID, CardID: cardID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

type fakeDeck struct {
	userID  string
	name    string
	created time.Time
	entries map[string]int
}

// fakeDecks serializes WithDeckLock on one mutex and applies a callback's
// writes only when it returns nil, like the row-locked transaction.
type fakeDecks struct {
	mu     sync.Mutex
	decks  map[string]*fakeDeck
	cards  *fakeCards
	nextID int
}

func newFakeDecks(cards *fakeCards) *fakeDecks {
	return &fakeDecks{decks: map[string]*fakeDeck{}, cards: cards}
}

func (f *fakeDecks) CreateDeck(ctx context.Context, userID, name string) (*models.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("deck-%d", f.nextID)
	f.decks[id] = &fakeDeck{userID: userID, name: name, created: time.Now(), entries: map[string]int{}}
	return f.view(id, f.decks[id]), nil
}

func (f *fakeDecks) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decks[deckID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.view(deckID, d), nil
}

func (f *fakeDecks) ListDecks(ctx context.Context, userID string) ([]*models.Deck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Deck{}
	for id, d := range f.decks {
		if d.userID == userID {
			out = append(out, f.view(id, d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDecks) WithDeckLock(ctx context.Context, deckID string, fn func(ctx context.Context, deck *models.Deck, w store.DeckWriter) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decks[deckID]
	if !ok {
		return store.ErrNotFound
	}

	staged := &fakeDeck{userID: d.userID, name: d.name, created: d.created, entries: map[string]int{}}
	for k, v := range d.entries {
		staged.entries[k] = v
	}
	w := &fakeDeckWriter{deck: staged, cards: f.cards}
	if err := fn(ctx, f.view(deckID, d), w); err != nil {
		return err
	}
	if w.deleted {
		delete(f.decks, deckID)
		return nil
	}
	f.decks[deckID] = staged
	return nil
}

func (f *fakeDecks) view(id string, d *fakeDeck) *models.Deck {
	deck := &models.Deck{ID: id, UserID: d.userID, Name: d.name, CreatedAt: d.created, UpdatedAt: d.created, Cards: []*models.DeckEntry{}}
	ids := make([]string, 0, len(d.entries))
	for cardID := range d.entries {
		ids = append(ids, cardID)
	}
	sort.Strings(ids)
	for _, cardID := range ids {
		card, _ := f.cards.GetCard(context.Background(), cardID)
		deck.Cards = append(deck.Cards, &models.DeckEntry{DeckID: id, CardID: cardID, Quantity: d.entries[cardID], Card: card})
	}
	return deck
}

type fakeDeckWriter struct {
	deck    *fakeDeck
	cards   *fakeCards
	deleted bool
}

func (w *fakeDeckWriter) SetEntry(ctx context.Context, cardID string, quantity int) error {
	if _, err := w.cards.GetCard(ctx, cardID); err != nil {
		return err
	}
	w.deck.entries[cardID] = quantity
	return nil
}

func (w *fakeDeckWriter) DeleteEntry(ctx context.Context, cardID string) error {
	if _, ok := w.deck.entries[cardID]; !ok {
		return store.ErrNotFound
	}
	delete(w.deck.entries, cardID)
	return nil
}

func (w *fakeDeckWriter) Rename(ctx context.Context, name string) error {
	w.deck.name = name
	return nil
}

func (w *fakeDeckWriter) Delete(ctx context.Context) error {
	w.deleted = true
	return nil
}

// fakePages serves canned pages; a page with an error fails, any other
// missing page comes back empty.
type fakePages struct {
	mu      sync.Mutex
	pages   map[int][]pokemontcg.Card
	errs    map[int]error
	block   map[int]bool
	queries []pokemontcg.PageQuery
	times   []time.Time
}

func newFakePages() *fakePages {
	return &fakePages{pages: map[int][]pokemontcg.Card{}, errs: map[int]error{}, block: map[int]bool{}}
}

func (f *fakePages) FetchPage(ctx context.Context, q pokemontcg.PageQuery) (*pokemontcg.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.times = append(f.times, time.Now())
	data, err, block := f.pages[q.Page], f.errs[q.Page], f.block[q.Page]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &pokemontcg.Page{Data: data, Page: q.Page, PageSize: q.PageSize, Count: len(data)}, nil
}

func (f *fakePages) calls() []pokemontcg.PageQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pokemontcg.PageQuery(nil), f.queries...)
}

func sourceCards(prefix string, n int) []pokemontcg.Card {
	out := make([]pokemontcg.Card, n)
	for i := range out {
		out[i] = pokemontcg.Card{
			ID:        fmt.Sprintf("%s-%d", prefix, i+1),
			Name:      fmt.Sprintf("Card %s %d", prefix, i+1),
			Supertype: "Pokémon",
			HP:        "70",
			Set:       pokemontcg.Set{ID: prefix, Name: "Set " + prefix},
		}
	}
	return out
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []*models.SyncReport
	err     error
}

func (r *recordingReporter) ReportSync(ctx context.Context, report *models.SyncReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

// fakeEmbedder picks the vector of the first keyword found in the text.
type fakeEmbedder struct {
	mu       sync.Mutex
	keywords []string
	vectors  [][]float32
	failOn   []string
	calls    int
}

func (f *fakeEmbedder) on(keyword string, vec ...float32) *fakeEmbedder {
	f.keywords = append(f.keywords, keyword)
	f.vectors = append(f.vectors, vec)
	return f
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, k := range f.failOn {
		if strings.Contains(text, k) {
			return nil, errors.New("embedding backend unavailable")
		}
	}
	for i, k := range f.keywords {
		if strings.Contains(text, k) {
			return f.vectors[i], nil
		}
	}
	return []float32{0, 0, 1}, nil
}

type fakeCompleter struct {
	answer string
	err    error
	calls  int
	system string
	user   string
	tokens int
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	f.calls++
	f.system, f.user, f.tokens = system, user, maxTokens
	return f.answer, f.err
}
