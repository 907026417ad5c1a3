package service

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultUnfilteredPages = 1
	DefaultFormatPages     = 5
	// DefaultSetPageLimit bounds an until-short-page run that never sees a
	// short page, e.g. because every page keeps failing.
	DefaultSetPageLimit = 50
)

type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterFormat
	FilterSet
)

// PageFilter selects the query predicate sent to the card source.
type PageFilter struct {
	Kind  FilterKind
	Value string // format name or set name
}

func NoFilter() PageFilter { return PageFilter{Kind: FilterNone} }

func LegalIn(format string) PageFilter { return PageFilter{Kind: FilterFormat, Value: format} }

func InSet(name string) PageFilter { return PageFilter{Kind: FilterSet, Value: name} }

// Query renders the filter in the card source's query syntax.
func (f PageFilter) Query() string {
	switch f.Kind {
	case FilterFormat:
		return fmt.Sprintf("legalities.%s:legal", f.Value)
	case FilterSet:
		return fmt.Sprintf("set.name:%q", f.Value)
	default:
		return ""
	}
}

func (f PageFilter) String() string {
	switch f.Kind {
	case FilterFormat:
		return "legal:" + f.Value
	case FilterSet:
		return "set:" + f.Value
	default:
		return "all"
	}
}

// Termination says when a sync run stops asking for more pages.
type Termination int

const (
	// FixedPages fetches pages 1..MaxPages.
	FixedPages Termination = iota
	// UntilShortPage stops after the first page smaller than the page size.
	// MaxPages still bounds the run.
	UntilShortPage
)

func (t Termination) String() string {
	if t == UntilShortPage {
		return "until_short_page"
	}
	return "fixed_pages"
}

type SyncRequest struct {
	Filter    PageFilter
	MaxPages  int
	Mode      Termination
	PageDelay time.Duration // pause between page requests; zero disables pacing
	Trigger   string
}

// UnfilteredSync is the plain few-page run; it does not pace.
func UnfilteredSync(pages int) SyncRequest {
	if pages < 1 {
		pages = DefaultUnfilteredPages
	}
	return SyncRequest{Filter: NoFilter(), MaxPages: pages, Mode: FixedPages}
}

// FormatSync pulls cards legal in format, pacing between pages.
func FormatSync(format string, pages int, delay time.Duration) SyncRequest {
	if pages < 1 {
		pages = DefaultFormatPages
	}
	return SyncRequest{Filter: LegalIn(format), MaxPages: pages, Mode: FixedPages, PageDelay: delay}
}

// SetSync pulls a whole named set, paging until the source runs out.
func SetSync(name string, delay time.Duration) SyncRequest {
	return SyncRequest{Filter: InSet(name), MaxPages: DefaultSetPageLimit, Mode: UntilShortPage, PageDelay: delay}
}

// PageSource is the external card catalog.
type PageSource interface {
	FetchPage(ctx context.Context, q pokemontcg.PageQuery) (*pokemontcg.Page, error)
}

type CardUpserter interface {
	UpsertCard(ctx context.Context, card *models.Card) error
}

// SyncReporter receives the report of every finished run.
type SyncReporter interface {
	ReportSync(ctx context.Context, report *models.SyncReport) error
}

type SyncService struct {
	source      PageSource
	cards       CardUpserter
	reporters   []SyncReporter
	pageSize    int
	pageTimeout time.Duration
}

func NewSyncService(source PageSource, cards CardUpserter, pageTimeout time.Duration, reporters ...SyncReporter) *SyncService {
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}
	return &SyncService{
		source:      source,
		cards:       cards,
		reporters:   reporters,
		pageSize:    pokemontcg.MaxPageSize,
		pageTimeout: pageTimeout,
	}
}

// Sync pulls pages from the card source and upserts every card by id. A page
// that fails or times out is logged and skipped; the run only fails as a
// whole when no page could be fetched. Scheduled and on-demand runs both come
// through here, and concurrent runs are safe because upserts are idempotent.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*models.SyncReport, error) {
	if req.MaxPages < 1 {
		req.MaxPages = 1
	}

	report := &models.SyncReport{
		RunID:       uuid.New().String(),
		Trigger:     req.Trigger,
		Filter:      req.Filter.String(),
		Mode:        req.Mode.String(),
		MaxPages:    req.MaxPages,
		FailedPages: []int{},
		StartedAt:   time.Now().UTC(),
	}
	logger := log.WithFields(log.Fields{
		"run_id": report.RunID,
		"filter": report.Filter,
		"mode":   report.Mode,
	})
	logger.Infof("card sync started, max pages %d", req.MaxPages)

	query := req.Filter.Query()
	for page := 1; page <= req.MaxPages; page++ {
		if page > 1 && req.PageDelay > 0 {
			if err := pause(ctx, req.PageDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		fetched, err := s.fetch(ctx, query, page)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.WithField("page", page).WithError(err).Error("page fetch failed, continuing with next page")
			report.PagesFailed++
			report.FailedPages = append(report.FailedPages, page)
			continue
		}
		report.PagesFetched++

		for i := range fetched.Data {
			card := Normalize(&fetched.Data[i])
			if err := s.cards.UpsertCard(ctx, card); err != nil {
				logger.WithFields(log.Fields{"page": page, "card_id": card.ID}).WithError(err).Error("card upsert failed")
				report.Failed++
				continue
			}
			report.Synced++
		}
		logger.WithField("page", page).Infof("page complete, %d cards on page, total synced %d", len(fetched.Data), report.Synced)

		if req.Mode == UntilShortPage && len(fetched.Data) < s.pageSize {
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	logger.Infof("card sync finished: synced %d, failed cards %d, pages fetched %d, pages failed %d",
		report.Synced, report.Failed, report.PagesFetched, report.PagesFailed)

	s.publish(ctx, report)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sync interrupted: %w", err)
	}
	if report.PagesFetched == 0 && report.PagesFailed > 0 {
		return report, &RuleError{Kind: ErrUpstream, Reason: fmt.Sprintf("all %d page fetches failed", report.PagesFailed)}
	}
	if report.Synced == 0 && report.Failed > 0 {
		return report, fmt.Errorf("none of the %d fetched cards could be stored", report.Failed)
	}
	return report, nil
}

func (s *SyncService) fetch(ctx context.Context, query string, page int) (*pokemontcg.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	return s.source.FetchPage(ctx, pokemontcg.PageQuery{
		Query:    query,
		Page:     page,
		PageSize: s.pageSize,
		OrderBy:  pokemontcg.OrderByReleaseDesc,
	})
}

func (s *SyncService) publish(ctx context.Context, report *models.SyncReport) {
	for _, r := range s.reporters {
		if err := r.ReportSync(context.WithoutCancel(ctx), report); err != nil {
			log.WithField("run_id", report.RunID).WithError(err).Warn("sync report delivery failed")
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Normalize maps a source card onto the catalog record. Missing list fields
// become empty lists, a missing hp becomes nil, and the optional structured
// lists keep their absent/present distinction.
func Normalize(c *pokemontcg.Card) *models.Card {
	card := &models.Card{
		ID:          c.ID,
		Name:        c.Name,
		Supertype:   c.Supertype,
		Subtypes:    orEmptyStrings(c.Subtypes),
		Types:       orEmptyStrings(c.Types),
		RetreatCost: orEmptyStrings(c.RetreatCost),
		Rules:       orEmptyStrings(c.Rules),
		ImageSmall:  c.Images.Small,
		ImageLarge:  c.Images.Large,
		SetID:       c.Set.ID,
		SetName:     c.Set.Name,
	}
	if c.HP != "" {
		hp := c.HP
		card.HP = &hp
	}

	if c.Abilities != nil {
		abilities := make([]models.Ability, 0, len(*c.Abilities))
		for _, a := range *c.Abilities {
			abilities = append(abilities, models.Ability{Name: a.Name, Text: a.Text, Type: a.Type})
		}
		card.Abilities = &abilities
	}
	if c.Attacks != nil {
		attacks := make([]models.Attack, 0, len(*c.Attacks))
		for _, a := range *c.Attacks {
			attacks = append(attacks, models.Attack{Name: a.Name, Cost: orEmptyStrings(a.Cost), Damage: a.Damage, Text: a.Text})
		}
		card.Attacks = &attacks
	}
	card.Weaknesses = typeModifiers(c.Weaknesses)
	card.Resistances = typeModifiers(c.Resistances)
	return card
}

func typeModifiers(in *[]pokemontcg.TypeValue) *[]models.TypeModifier {
	if in == nil {
		return nil
	}
	out := make([]models.TypeModifier, 0, len(*in))
	for _, v := range *in {
		out = append(out, models.TypeModifier{Type: v.Type, Value: v.Value})
	}
	return &out
}

func orEmptyStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
