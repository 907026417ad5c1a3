package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFilterQuery(t *testing.T) {
	assert.Equal(t, "", NoFilter().Query())
	assert.Equal(t, "legalities.standard:legal", LegalIn("standard").Query())
	assert.Equal(t, "legalities.expanded:legal", LegalIn("expanded").Query())
	assert.Equal(t, `set.name:"Scarlet & Violet"`, InSet("Scarlet & Violet").Query())
}

func TestSyncPresets(t *testing.T) {
	r := UnfilteredSync(0)
	assert.Equal(t, 1, r.MaxPages)
	assert.Equal(t, FixedPages, r.Mode)
	assert.Zero(t, r.PageDelay)

	r = FormatSync("standard", 0, time.Second)
	assert.Equal(t, 5, r.MaxPages)
	assert.Equal(t, time.Second, r.PageDelay)

	r = SetSync("Paldea Evolved", time.Second)
	assert.Equal(t, UntilShortPage, r.Mode)
	assert.Equal(t, DefaultSetPageLimit, r.MaxPages)
}

func TestSyncSkipsFailedPage(t *testing.T) {
	pages := newFakePages()
	for p := 1; p <= 5; p++ {
		pages.pages[p] = sourceCards(string(rune('a'+p-1)), 10)
	}
	pages.errs[2] = errors.New("bad gateway")
	cards := newFakeCards()
	reporter := &recordingReporter{}

	svc := NewSyncService(pages, cards, time.Second, reporter)
	report, err := svc.Sync(context.Background(), FormatSync("standard", 5, 0))
	require.NoError(t, err)

	assert.Equal(t, 40, report.Synced)
	assert.Equal(t, 4, report.PagesFetched)
	assert.Equal(t, 1, report.PagesFailed)
	assert.Equal(t, []int{2}, report.FailedPages)
	assert.Len(t, pages.calls(), 5)
	for _, q := range pages.calls() {
		assert.Equal(t, "legalities.standard:legal", q.Query)
		assert.Equal(t, pokemontcg.MaxPageSize, q.PageSize)
		assert.Equal(t, pokemontcg.OrderByReleaseDesc, q.OrderBy)
	}

	n, _ := cards.CountCards(context.Background())
	assert.Equal(t, int64(40), n)

	require.Len(t, reporter.reports, 1)
	assert.Same(t, report, reporter.reports[0])
}

func TestSyncIsIdempotent(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("sv1", 30)
	cards := newFakeCards()
	svc := NewSyncService(pages, cards, time.Second)

	first, err := svc.Sync(context.Background(), UnfilteredSync(1))
	require.NoError(t, err)
	second, err := svc.Sync(context.Background(), UnfilteredSync(1))
	require.NoError(t, err)

	assert.Equal(t, 30, first.Synced)
	assert.Equal(t, 30, second.Synced)
	n, _ := cards.CountCards(context.Background())
	assert.Equal(t, int64(30), n)

	c, err := cards.GetCard(context.Background(), "sv1-1")
	require.NoError(t, err)
	assert.NotNil(t, c.UpdatedAt)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestSyncUntilShortPage(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", pokemontcg.MaxPageSize)
	pages.pages[2] = sourceCards("p2", pokemontcg.MaxPageSize)
	pages.pages[3] = sourceCards("p3", 12)
	pages.pages[4] = sourceCards("p4", 5)
	cards := newFakeCards()

	svc := NewSyncService(pages, cards, time.Second)
	report, err := svc.Sync(context.Background(), SyncRequest{Filter: InSet("Obsidian Flames"), MaxPages: 10, Mode: UntilShortPage})
	require.NoError(t, err)

	assert.Len(t, pages.calls(), 3)
	assert.Equal(t, 2*pokemontcg.MaxPageSize+12, report.Synced)
	assert.Equal(t, `set.name:"Obsidian Flames"`, pages.calls()[0].Query)
}

func TestSyncUntilShortPageFailedPageIsNotShort(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", pokemontcg.MaxPageSize)
	pages.errs[2] = errors.New("timeout")
	pages.pages[3] = sourceCards("p3", 3)
	cards := newFakeCards()

	svc := NewSyncService(pages, cards, time.Second)
	report, err := svc.Sync(context.Background(), SyncRequest{Filter: InSet("x"), MaxPages: 10, Mode: UntilShortPage})
	require.NoError(t, err)

	assert.Len(t, pages.calls(), 3)
	assert.Equal(t, []int{2}, report.FailedPages)
	assert.Equal(t, pokemontcg.MaxPageSize+3, report.Synced)
}

func TestSyncUntilShortPageStopsAtSafetyBound(t *testing.T) {
	pages := newFakePages()
	for p := 1; p <= 4; p++ {
		pages.errs[p] = errors.New("down")
	}
	svc := NewSyncService(pages, newFakeCards(), time.Second)

	report, err := svc.Sync(context.Background(), SyncRequest{Filter: InSet("x"), MaxPages: 4, Mode: UntilShortPage})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Len(t, pages.calls(), 4)
	assert.Equal(t, 4, report.PagesFailed)
}

func TestSyncFixedPagesFetchesEveryPage(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", 3)
	svc := NewSyncService(pages, newFakeCards(), time.Second)

	report, err := svc.Sync(context.Background(), UnfilteredSync(3))
	require.NoError(t, err)
	assert.Len(t, pages.calls(), 3)
	assert.Equal(t, 3, report.Synced)
	assert.Equal(t, 3, report.PagesFetched)
}

func TestSyncAllPagesFail(t *testing.T) {
	pages := newFakePages()
	for p := 1; p <= 3; p++ {
		pages.errs[p] = &pokemontcg.UpstreamError{Page: p, Status: 503, Err: errors.New("unavailable")}
	}
	reporter := &recordingReporter{}
	svc := NewSyncService(pages, newFakeCards(), time.Second, reporter)

	report, err := svc.Sync(context.Background(), UnfilteredSync(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	require.NotNil(t, report)
	assert.Equal(t, 0, report.Synced)
	assert.Equal(t, []int{1, 2, 3}, report.FailedPages)
	assert.Len(t, reporter.reports, 1)
}

func TestSyncPageTimeoutIsPageFailure(t *testing.T) {
	pages := newFakePages()
	pages.block[1] = true
	pages.pages[2] = sourceCards("p2", 4)
	svc := NewSyncService(pages, newFakeCards(), 20*time.Millisecond)

	report, err := svc.Sync(context.Background(), UnfilteredSync(2))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, report.FailedPages)
	assert.Equal(t, 4, report.Synced)
}

func TestSyncCountsCardFailures(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", 5)
	cards := newFakeCards()
	cards.upsertErr["p1-3"] = errors.New("constraint")
	svc := NewSyncService(pages, cards, time.Second)

	report, err := svc.Sync(context.Background(), UnfilteredSync(1))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Synced)
	assert.Equal(t, 1, report.Failed)
}

func TestSyncPacesFilteredPages(t *testing.T) {
	pages := newFakePages()
	svc := NewSyncService(pages, newFakeCards(), time.Second)

	_, err := svc.Sync(context.Background(), FormatSync("expanded", 3, 30*time.Millisecond))
	require.NoError(t, err)

	require.Len(t, pages.times, 3)
	assert.GreaterOrEqual(t, pages.times[1].Sub(pages.times[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, pages.times[2].Sub(pages.times[1]), 30*time.Millisecond)
}

func TestSyncCancelledDuringPause(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", 2)
	svc := NewSyncService(pages, newFakeCards(), time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := svc.Sync(ctx, FormatSync("standard", 5, time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, pages.calls(), 1)
	assert.Equal(t, 2, report.Synced)
}

func TestSyncReporterErrorDoesNotFailRun(t *testing.T) {
	pages := newFakePages()
	pages.pages[1] = sourceCards("p1", 1)
	svc := NewSyncService(pages, newFakeCards(), time.Second, &recordingReporter{err: errors.New("nats down")})

	report, err := svc.Sync(context.Background(), UnfilteredSync(1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
}

func TestNormalize(t *testing.T) {
	empty := []pokemontcg.Ability{}
	c := Normalize(&pokemontcg.Card{
		ID:        "sv1-1",
		Name:      "Pineco",
		Supertype: "Pokémon",
		Abilities: &empty,
		Attacks:   &[]pokemontcg.Attack{{Name: "Tackle", Damage: "20"}},
		Weaknesses: &[]pokemontcg.TypeValue{
			{Type: "Fire", Value: "×2"},
		},
		Set:    pokemontcg.Set{ID: "sv1", Name: "Scarlet & Violet"},
		Images: pokemontcg.Images{Small: "s.png", Large: "l.png"},
	})

	assert.Nil(t, c.HP)
	assert.Equal(t, []string{}, c.Subtypes)
	assert.Equal(t, []string{}, c.Types)
	assert.Equal(t, []string{}, c.Rules)
	require.NotNil(t, c.Abilities)
	assert.Empty(t, *c.Abilities)
	require.NotNil(t, c.Attacks)
	assert.Equal(t, []string{}, (*c.Attacks)[0].Cost)
	require.NotNil(t, c.Weaknesses)
	assert.Equal(t, "×2", (*c.Weaknesses)[0].Value)
	assert.Nil(t, c.Resistances)
	assert.Equal(t, "sv1", c.SetID)
	assert.Equal(t, "l.png", c.ImageLarge)

	withHP := Normalize(&pokemontcg.Card{ID: "x", HP: "120"})
	require.NotNil(t, withHP.HP)
	assert.Equal(t, "120", *withHP.HP)
	assert.Nil(t, withHP.Abilities)
}
