package broker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	msg     comm.WSMessage
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{subject: subject, msg: m})
	return nil
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.sent...)
}

type fakeSyncer struct {
	reqs []service.SyncRequest
}

func (f *fakeSyncer) Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error) {
	f.reqs = append(f.reqs, req)
	return &models.SyncReport{}, nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	missing []bool
	release chan struct{}
}

func (f *fakeEmbedder) EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.missing = append(f.missing, onlyMissing)
	return &models.EmbedReport{Embedded: 3}, nil
}

func newTestBroker() (*Broker, *fakePublisher) {
	b := NewBroker(nil)
	pub := &fakePublisher{}
	b.pub = pub
	return b, pub
}

func natsMsg(t *testing.T, msgType string, v any) *nats.Msg {
	t.Helper()
	payload, err := comm.Encode(msgType, "", v)
	require.NoError(t, err)
	return &nats.Msg{Data: payload}
}

func TestReportSyncPublishesCatalogEvent(t *testing.T) {
	b, pub := newTestBroker()

	require.NoError(t, b.ReportSync(context.Background(), &models.SyncReport{RunID: "r1", Synced: 12}))

	sent := pub.all()
	require.Len(t, sent, 1)
	assert.Equal(t, comm.CatalogTopic, sent[0].subject)
	assert.Equal(t, comm.TypeCatalogSynced, sent[0].msg.Type)

	var report models.SyncReport
	require.NoError(t, json.Unmarshal(sent[0].msg.Data, &report))
	assert.Equal(t, "r1", report.RunID)
	assert.Equal(t, 12, report.Synced)
}

func TestSyncRequestSelectsPreset(t *testing.T) {
	b, _ := newTestBroker()
	syncer := &fakeSyncer{}
	b.Syncer = syncer
	b.PageDelay = time.Second

	b.handleMessage(natsMsg(t, comm.TypeSyncRequest, comm.SyncRequest{Format: "expanded", Pages: 3}))
	b.handleMessage(natsMsg(t, comm.TypeSyncRequest, comm.SyncRequest{Set: "151"}))
	b.handleMessage(natsMsg(t, comm.TypeSyncRequest, comm.SyncRequest{}))

	require.Len(t, syncer.reqs, 3)
	assert.Equal(t, "legalities.expanded:legal", syncer.reqs[0].Filter.Query())
	assert.Equal(t, 3, syncer.reqs[0].MaxPages)
	assert.Equal(t, time.Second, syncer.reqs[0].PageDelay)
	assert.Equal(t, service.UntilShortPage, syncer.reqs[1].Mode)
	assert.Equal(t, service.FilterNone, syncer.reqs[2].Filter.Kind)
	for _, r := range syncer.reqs {
		assert.Equal(t, "nats", r.Trigger)
	}
}

func TestCatalogSyncedTriggersEmbedding(t *testing.T) {
	b, pub := newTestBroker()
	emb := &fakeEmbedder{}
	b.Embedder = emb

	b.handleMessage(natsMsg(t, comm.TypeCatalogSynced, models.SyncReport{RunID: "r1", Synced: 5}))
	b.Wait()

	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, []bool{true}, emb.missing)

	sent := pub.all()
	require.Len(t, sent, 1)
	assert.Equal(t, comm.TypeEmbedFinished, sent[0].msg.Type)
}

func TestCatalogSyncedWithoutCardsIsIgnored(t *testing.T) {
	b, _ := newTestBroker()
	emb := &fakeEmbedder{}
	b.Embedder = emb

	b.handleMessage(natsMsg(t, comm.TypeCatalogSynced, models.SyncReport{RunID: "r1"}))
	b.Wait()
	assert.Equal(t, 0, emb.calls)
}

func TestEmbeddingRunsOneAtATime(t *testing.T) {
	b, _ := newTestBroker()
	emb := &fakeEmbedder{release: make(chan struct{})}
	b.Embedder = emb

	b.handleMessage(natsMsg(t, comm.TypeCatalogSynced, models.SyncReport{RunID: "r1", Synced: 5}))
	b.handleMessage(natsMsg(t, comm.TypeCatalogSynced, models.SyncReport{RunID: "r2", Synced: 5}))
	close(emb.release)
	b.Wait()

	assert.Equal(t, 1, emb.calls)
}

func TestMalformedMessageIsDropped(t *testing.T) {
	b, pub := newTestBroker()
	b.Syncer = &fakeSyncer{}

	b.handleMessage(&nats.Msg{Data: []byte("not json")})
	b.handleMessage(&nats.Msg{Data: []byte(`{"type":"sync-request","data":"oops"}`)})
	assert.Empty(t, pub.all())
}
