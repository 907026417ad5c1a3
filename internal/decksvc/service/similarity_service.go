package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
	log "github.com/sirupsen/logrus"
)

const (
	embedBatchSize    = 100
	DefaultQueryLimit = 5
	maxQueryLimit     = 50
	adviceCardLimit   = 5
	adviceMaxTokens   = 500

	NoCardsAnswer   = "I could not find any relevant cards in your collection. Try adding more cards or asking a different question."
	NoAdviceAnswer  = "No advice generated."
	advisorSystem   = "You are an expert Pokemon TCG deck builder who helps players optimize their decks based on the cards they own."
	advisorPreamble = "You are a Pokemon TCG deck building advisor. The user has the following relevant cards in their collection:\n\n"
	advisorClosing  = "\n\nBased on these cards, provide helpful deck building advice. Be specific about which cards to use and why. Keep your response concise but informative."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// CardIndex is the vector side of the catalog. NearestOwned must only return
// cards in the user's collection that carry a vector.
type CardIndex interface {
	CardsAfter(ctx context.Context, afterID string, limit int, onlyMissing bool) ([]*models.Card, error)
	SetEmbedding(ctx context.Context, cardID string, embedding []float32) error
	NearestOwned(ctx context.Context, userID string, embedding []float32, limit int) ([]store.CardDistance, error)
}

type SimilarityService struct {
	index     CardIndex
	embedder  Embedder
	completer Completer
}

func NewSimilarityService(index CardIndex, embedder Embedder, completer Completer) *SimilarityService {
	return &SimilarityService{index: index, embedder: embedder, completer: completer}
}

// Embed computes the vector for a card's text description.
func (s *SimilarityService) Embed(ctx context.Context, card *models.Card) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, CardText(card))
	if err != nil {
		return nil, &RuleError{Kind: ErrEmbedding, Reason: fmt.Sprintf("embedding %s failed: %v", card.ID, err)}
	}
	return vec, nil
}

// Index stores vec as the card's embedding, replacing any previous one.
func (s *SimilarityService) Index(ctx context.Context, cardID string, vec []float32) error {
	if err := s.index.SetEmbedding(ctx, cardID, vec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Card %s not found", cardID)
		}
		return err
	}
	return nil
}

// Query ranks the user's owned cards by similarity to text.
func (s *SimilarityService) Query(ctx context.Context, text, userID string, limit int) ([]*models.ScoredCard, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invariant("Query must not be empty")
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &RuleError{Kind: ErrEmbedding, Reason: fmt.Sprintf("embedding query failed: %v", err)}
	}

	hits, err := s.index.NearestOwned(ctx, userID, vec, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.ScoredCard, 0, len(hits))
	for _, h := range hits {
		out = append(out, &models.ScoredCard{Card: h.Card, Similarity: similarity(h.Distance)})
	}
	return out, nil
}

// EmbedAll walks the catalog in id order and indexes every card, or only
// the cards without a vector when onlyMissing is set. A card that fails is
// logged and skipped.
func (s *SimilarityService) EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error) {
	report := &models.EmbedReport{}
	after := ""

	for {
		cards, err := s.index.CardsAfter(ctx, after, embedBatchSize, onlyMissing)
		if err != nil {
			return report, fmt.Errorf("load cards after %q: %w", after, err)
		}
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			log.Infof("embedding: %s", card.Name)

			vec, err := s.Embed(ctx, card)
			if err == nil {
				err = s.Index(ctx, card.ID, vec)
			}
			if err != nil {
				log.WithField("card_id", card.ID).WithError(err).Error("failed to embed card")
				report.Failed++
				continue
			}
			report.Embedded++
		}

		after = cards[len(cards)-1].ID
		if len(cards) < embedBatchSize {
			break
		}
	}

	log.Infof("embedding finished: embedded %d, failed %d", report.Embedded, report.Failed)
	if report.Embedded == 0 && report.Failed > 0 {
		return report, &RuleError{Kind: ErrEmbedding, Reason: fmt.Sprintf("all %d cards failed to embed", report.Failed)}
	}
	return report, nil
}

// Advise retrieves the user's most relevant owned cards and asks the
// completer for deck building advice grounded in them.
func (s *SimilarityService) Advise(ctx context.Context, userID, question string) (*models.Advice, error) {
	hits, err := s.Query(ctx, question, userID, adviceCardLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &models.Advice{Answer: NoCardsAnswer, RelevantCards: []string{}}, nil
	}

	descriptions := make([]string, 0, len(hits))
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		descriptions = append(descriptions, CardText(h.Card))
		names = append(names, h.Card.Name)
	}
	prompt := advisorPreamble + strings.Join(descriptions, "\n\n") +
		"\n\nUser question: " + strings.TrimSpace(question) + advisorClosing

	answer, err := s.completer.Complete(ctx, advisorSystem, prompt, adviceMaxTokens)
	if err != nil {
		return nil, &RuleError{Kind: ErrUpstream, Reason: fmt.Sprintf("advice generation failed: %v", err)}
	}
	if strings.TrimSpace(answer) == "" {
		answer = NoAdviceAnswer
	}
	return &models.Advice{Answer: answer, RelevantCards: names}, nil
}

// similarity maps a cosine distance in [0,2] onto a score in [0,1].
func similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
