package broker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avvvet/deckbuilder-services/internal/comm"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/models"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Syncer interface {
	Sync(ctx context.Context, req service.SyncRequest) (*models.SyncReport, error)
}

type Embedder interface {
	EmbedAll(ctx context.Context, onlyMissing bool) (*models.EmbedReport, error)
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type Broker struct {
	Conn *nats.Conn
	pub  publisher

	Syncer     Syncer        // set in processes that serve sync requests
	Embedder   Embedder      // set when cards are embedded after each sync
	PageDelay  time.Duration // pacing for requested filtered runs
	RunTimeout time.Duration

	embedding atomic.Bool
	wg        sync.WaitGroup
}

func NewBroker(nc *nats.Conn) *Broker {
	b := &Broker{Conn: nc, RunTimeout: 30 * time.Minute}
	if nc != nil {
		b.pub = nc
	}
	return b
}

// ReportSync announces a finished sync run on the catalog topic.
func (b *Broker) ReportSync(ctx context.Context, report *models.SyncReport) error {
	payload, err := comm.Encode(comm.TypeCatalogSynced, "", report)
	if err != nil {
		return err
	}
	return b.Publish(comm.CatalogTopic, payload)
}

// handles messages on the catalog and request topics
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case comm.TypeSyncRequest:
		if b.Syncer == nil {
			return
		}
		var request comm.SyncRequest
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error decoding sync request: %s", err)
			return
		}
		b.runSync(request)

	case comm.TypeCatalogSynced:
		if b.Embedder == nil {
			return
		}
		var report models.SyncReport
		if err := json.Unmarshal(msg.Data, &report); err != nil {
			log.Errorf("Error decoding sync report: %s", err)
			return
		}
		if report.Synced == 0 {
			return
		}
		b.embedAfterSync(report.RunID)

	case comm.TypeEmbedFinished:
		// published by this service; nothing to do
	default:
		log.Warnf("Unknown message %s", msg.Type)
	}
}

func (b *Broker) runSync(request comm.SyncRequest) {
	var req service.SyncRequest
	switch {
	case request.Set != "":
		req = service.SetSync(request.Set, b.PageDelay)
	case request.Format != "":
		req = service.FormatSync(request.Format, request.Pages, b.PageDelay)
	default:
		req = service.UnfilteredSync(request.Pages)
	}
	req.Trigger = "nats"

	ctx, cancel := context.WithTimeout(context.Background(), b.RunTimeout)
	defer cancel()

	if _, err := b.Syncer.Sync(ctx, req); err != nil {
		log.Errorf("Error [Syncer.Sync] %s", err)
	}
}

// embedAfterSync embeds the cards that still lack a vector. Only one run is
// in flight at a time; a sync finishing meanwhile is picked up by that run
// or the next one.
func (b *Broker) embedAfterSync(runID string) {
	if !b.embedding.CompareAndSwap(false, true) {
		log.Infof("embedding already running, skipping trigger from sync %s", runID)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.embedding.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), b.RunTimeout)
		defer cancel()

		report, err := b.Embedder.EmbedAll(ctx, true)
		if err != nil {
			log.Errorf("Error [Embedder.EmbedAll] after sync %s: %s", runID, err)
		}
		if report == nil {
			return
		}

		payload, err := comm.Encode(comm.TypeEmbedFinished, "", report)
		if err != nil {
			log.Errorf("Error %s", err)
			return
		}
		_ = b.Publish(comm.CatalogTopic, payload)
	}()
}

// Wait blocks until background embedding has finished.
func (b *Broker) Wait() {
	b.wg.Wait()
}

// consume sync requests; one worker in the queue group handles each
func (b *Broker) QueueSubscribRequests(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// consume catalog events
func (b *Broker) SubscribCatalog(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	if b.pub == nil {
		return nil
	}
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
