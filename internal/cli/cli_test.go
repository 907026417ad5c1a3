package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	migrated    bool
	syncs       []service.SyncRequest
	requests    []comm.SyncRequest
	onlyMissing *bool
	limit       int
	closed      bool

	report  *models.SyncReport
	syncErr error
	history []*models.SyncReport
}

func (f *fakeBackend) Migrate(ctx context.Context) error {
	f.migrated = true
	return nil
}

func (f *fakeBackend) Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error) {
	f.syncs = append(f.syncs, req)
	return f.report, f.syncErr
}

func (f *fakeBackend) RequestSync(ctx context.Context, req comm.SyncRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeBackend) EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error) {
	f.onlyMissing = &onlyMissing
	return &models.EmbedReport{Embedded: 12, Failed: 1}, nil
}

func (f *fakeBackend) History(ctx context.Context, limit int) ([]*models.SyncReport, error) {
	f.limit = limit
	return f.history, nil
}

func (f *fakeBackend) Close() { f.closed = true }

var started = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleReport() *models.SyncReport {
	return &models.SyncReport{
		RunID:        "run-1",
		Trigger:      "cli",
		Filter:       "legal:standard",
		Mode:         "fixed_pages",
		MaxPages:     5,
		PagesFetched: 4,
		PagesFailed:  1,
		FailedPages:  []int{3},
		Synced:       998,
		Failed:       2,
		StartedAt:    started,
		FinishedAt:   started.Add(12500 * time.Millisecond),
	}
}

func run(t *testing.T, b *fakeBackend, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func() (Backend, error) { return b, nil })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSyncBuildsRequests(t *testing.T) {
	b := &fakeBackend{report: sampleReport()}

	_, err := run(t, b, "sync")
	require.NoError(t, err)
	_, err = run(t, b, "sync", "--format", "expanded", "--pages", "2", "--delay", "0s")
	require.NoError(t, err)
	_, err = run(t, b, "sync", "--set", "Base")
	require.NoError(t, err)

	require.Len(t, b.syncs, 3)
	assert.Equal(t, service.UnfilteredSync(0), withoutTrigger(b.syncs[0]))
	assert.Equal(t, service.FormatSync("expanded", 2, 0), withoutTrigger(b.syncs[1]))
	assert.Equal(t, service.SetSync("Base", time.Second), withoutTrigger(b.syncs[2]))
	assert.Equal(t, "cli", b.syncs[0].Trigger)
	assert.True(t, b.closed)
}

func withoutTrigger(req service.SyncRequest) service.SyncRequest {
	req.Trigger = ""
	return req
}

func TestSyncFlagConflicts(t *testing.T) {
	b := &fakeBackend{report: sampleReport()}

	_, err := run(t, b, "sync", "--format", "standard", "--set", "Base")
	assert.Error(t, err)
	_, err = run(t, b, "sync", "--pages", "51")
	assert.Error(t, err)
	_, err = run(t, b, "--output", "yaml", "sync")
	assert.Error(t, err)
	assert.Empty(t, b.syncs)
}

func TestSyncRemotePublishes(t *testing.T) {
	b := &fakeBackend{}

	out, err := run(t, b, "sync", "--remote", "--format", "standard", "--pages", "3")
	require.NoError(t, err)
	assert.Equal(t, "sync requested\n", out)
	assert.Equal(t, []comm.SyncRequest{{Format: "standard", Pages: 3}}, b.requests)
	assert.Empty(t, b.syncs)
}

func TestSyncFailurePrintsReport(t *testing.T) {
	b := &fakeBackend{report: sampleReport(), syncErr: assert.AnError}

	out, err := run(t, b, "sync")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, out, "run-1")
}

func TestSyncReportText(t *testing.T) {
	out, err := run(t, &fakeBackend{report: sampleReport()}, "sync", "--format", "standard")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "sync_report", []byte(out))
}

func TestSyncReportJSON(t *testing.T) {
	out, err := run(t, &fakeBackend{report: sampleReport()}, "--output", "json", "sync")
	require.NoError(t, err)

	var got models.SyncReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 998, got.Synced)
	assert.Equal(t, []int{3}, got.FailedPages)

	var keys map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Equal(t, "run-1", keys["runId"])
	assert.Contains(t, keys, "pagesFetched")
	assert.NotContains(t, keys, "expires_at")
}

func TestHistoryText(t *testing.T) {
	older := sampleReport()
	older.Trigger, older.Filter, older.StartedAt = "schedule", "all", started.Add(-24*time.Hour)
	older.PagesFailed, older.FailedPages = 0, nil
	b := &fakeBackend{history: []*models.SyncReport{sampleReport(), older}}

	out, err := run(t, b, "history", "--limit", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, b.limit)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "history", []byte(out))
}

func TestHistoryEmpty(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "history")
	require.NoError(t, err)
	assert.Equal(t, "no sync runs recorded\n", out)

	_, err = run(t, &fakeBackend{}, "history", "--limit", "0")
	assert.Error(t, err)
}

func TestEmbedAndMigrate(t *testing.T) {
	b := &fakeBackend{}

	out, err := run(t, b, "embed", "--only-missing")
	require.NoError(t, err)
	require.NotNil(t, b.onlyMissing)
	assert.True(t, *b.onlyMissing)
	assert.Equal(t, "embedded 12 cards, 1 failed\n", out)

	out, err = run(t, b, "migrate")
	require.NoError(t, err)
	assert.True(t, b.migrated)
	assert.Equal(t, "schema applied\n", out)
}
