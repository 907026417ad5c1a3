package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/deckbuilder-services/configs"
	"github.com/avvvet/deckbuilder-services/internal/comm"
	mongodb "github.com/avvvet/deckbuilder-services/internal/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/broker"
	deckconfig "github.com/avvvet/deckbuilder-services/internal/decksvc/config"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
	natscli "github.com/avvvet/deckbuilder-services/internal/nats"
	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
)

const SERVICE_NAME = "sync"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME+"_service_"+instanceId, false)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := deckconfig.Load()

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	if err := db.Migrate(context.Background(), dbpool); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// Connect to NATS
	n, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn)
	b.PageDelay = cfg.SyncPageDelay
	reporters := []service.SyncReporter{b}

	mdb, closeMongo, err := mongodb.ConnectToDB(cfg.MongoURI)
	if err != nil {
		log.Warnf("sync history disabled: %v", err)
	} else {
		defer closeMongo()
		archive, err := mongodb.NewReportArchive(context.Background(), mdb, cfg.SyncReportTTL)
		if err != nil {
			log.Warnf("sync history disabled: %v", err)
		} else {
			reporters = append(reporters, archive)
		}
	}

	source := pokemontcg.NewClient(cfg.CardSourceURL, cfg.CardSourceKey)
	syncService := service.NewSyncService(source, store.NewCardStore(dbpool), cfg.PageTimeout, reporters...)
	b.Syncer = syncService

	// on-demand runs published by other services and the cli
	sub, err := b.QueueSubscribRequests(comm.RequestTopic, comm.SyncWorkQueue)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))))
	_, err = c.AddFunc(cfg.SyncSchedule, func() {
		req := service.FormatSync(cfg.SyncFormat, cfg.SyncPages, cfg.SyncPageDelay)
		req.Trigger = "schedule"
		if _, err := syncService.Sync(ctx, req); err != nil {
			log.Errorf("scheduled sync failed: %s", err)
		}
	})
	if err != nil {
		log.Fatalf("Invalid SYNC_SCHEDULE %q: %v", cfg.SyncSchedule, err)
	}
	c.Start()
	log.Infof("%s service scheduled %s-legal sync at %q", SERVICE_NAME, cfg.SyncFormat, cfg.SyncSchedule)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	cancel()
	<-c.Stop().Done()
	b.Wait()

	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
