package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	mongodb "github.com/avvvet/deckbuilder-services/internal/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/broker"
	deckconfig "github.com/avvvet/deckbuilder-services/internal/decksvc/config"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
	natscli "github.com/avvvet/deckbuilder-services/internal/nats"
	"github.com/avvvet/deckbuilder-services/internal/openai"
	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// liveBackend talks to the real Postgres, Mongo, NATS and OpenAI endpoints.
type liveBackend struct {
	cfg     deckconfig.Config
	pool    *pgxpool.Pool
	archive *mongodb.ReportArchive
	nats    *natscli.Nats
	closers []func()
}

// OpenLive returns a Backend configured from the environment.
func OpenLive() (Backend, error) {
	return &liveBackend{cfg: deckconfig.Load()}, nil
}

func (b *liveBackend) postgres() (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	pool, err := db.Connect(b.cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	b.pool = pool
	b.closers = append(b.closers, pool.Close)
	return pool, nil
}

func (b *liveBackend) history() (*mongodb.ReportArchive, error) {
	if b.archive != nil {
		return b.archive, nil
	}
	mdb, closeMongo, err := mongodb.ConnectToDB(b.cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, closeMongo)
	archive, err := mongodb.NewReportArchive(context.Background(), mdb, b.cfg.SyncReportTTL)
	if err != nil {
		return nil, err
	}
	b.archive = archive
	return archive, nil
}

func (b *liveBackend) broker() (*natscli.Nats, error) {
	if b.nats != nil {
		return b.nats, nil
	}
	n, err := natscli.Connect("catalogctl")
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	b.nats = n
	b.closers = append(b.closers, n.Close)
	return n, nil
}

func (b *liveBackend) Migrate(ctx context.Context) error {
	pool, err := b.postgres()
	if err != nil {
		return err
	}
	return db.Migrate(ctx, pool)
}

// Sync runs in process. The run is archived and announced when Mongo and
// NATS are reachable; neither is required.
func (b *liveBackend) Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error) {
	pool, err := b.postgres()
	if err != nil {
		return nil, err
	}

	var reporters []service.SyncReporter
	if archive, err := b.history(); err != nil {
		log.Warnf("sync report will not be archived: %s", err)
	} else {
		reporters = append(reporters, archive)
	}
	if n, err := b.broker(); err != nil {
		log.Warnf("sync report will not be announced: %s", err)
	} else {
		reporters = append(reporters, broker.NewBroker(n.Conn))
	}

	source := pokemontcg.NewClient(b.cfg.CardSourceURL, b.cfg.CardSourceKey)
	return service.NewSyncService(source, store.NewCardStore(pool), b.cfg.PageTimeout, reporters...).Sync(ctx, req)
}

func (b *liveBackend) RequestSync(ctx context.Context, req comm.SyncRequest) error {
	n, err := b.broker()
	if err != nil {
		return err
	}
	payload, err := comm.Encode(comm.TypeSyncRequest, "", req)
	if err != nil {
		return err
	}
	if err := n.Conn.Publish(comm.RequestTopic, payload); err != nil {
		return fmt.Errorf("publish sync request: %w", err)
	}
	return n.Conn.FlushWithContext(ctx)
}

func (b *liveBackend) EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error) {
	ai, err := openai.NewClient(openai.Config{
		APIKey:          b.cfg.OpenAIKey,
		BaseURL:         b.cfg.OpenAIBaseURL,
		EmbeddingModel:  b.cfg.EmbeddingModel,
		CompletionModel: b.cfg.CompletionModel,
	})
	if err != nil {
		return nil, errors.New("OPENAI_API_KEY is required for embedding")
	}
	pool, err := b.postgres()
	if err != nil {
		return nil, err
	}
	return service.NewSimilarityService(store.NewCardStore(pool), ai, ai).EmbedAll(ctx, onlyMissing)
}

func (b *liveBackend) History(ctx context.Context, limit int) ([]*models.SyncReport, error) {
	archive, err := b.history()
	if err != nil {
		return nil, err
	}
	return archive.Recent(ctx, limit)
}

func (b *liveBackend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
