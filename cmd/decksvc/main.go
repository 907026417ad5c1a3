package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/nats-io/nats.go"

	config "github.com/avvvet/deckbuilder-services/configs"
	"github.com/avvvet/deckbuilder-services/internal/comm"
	mongodb "github.com/avvvet/deckbuilder-services/internal/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/broker"
	deckconfig "github.com/avvvet/deckbuilder-services/internal/decksvc/config"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/db"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/handlers"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/service"
	"github.com/avvvet/deckbuilder-services/internal/decksvc/store"
	natscli "github.com/avvvet/deckbuilder-services/internal/nats"
	"github.com/avvvet/deckbuilder-services/internal/openai"
	"github.com/avvvet/deckbuilder-services/internal/pokemontcg"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "deck"

var instanceId string

func init() {
	instanceId = "001"
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

	cardStore := store.NewCardStore(dbpool)
	catalogService := service.NewCatalogService(cardStore)
	collectionService := service.NewCollectionService(store.NewCollectionStore(dbpool), cardStore)
	deckService := service.NewDeckService(store.NewDeckStore(dbpool), cardStore)

	svc := handlers.Services{
		Catalog:     catalogService,
		Collections: collectionService,
		Decks:       deckService,
	}

	var reporters []service.SyncReporter

	// sync history is kept in mongo; the service runs without it
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
			svc.History = archive
		}
	}

	var similarity *service.SimilarityService
	ai, err := openai.NewClient(openai.Config{
		APIKey:          cfg.OpenAIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		EmbeddingModel:  cfg.EmbeddingModel,
		CompletionModel: cfg.CompletionModel,
	})
	if err != nil {
		log.Warnf("advisor disabled: %v", err)
	} else {
		similarity = service.NewSimilarityService(cardStore, ai, ai)
		svc.Advisor = similarity
	}

	// Connect to NATS
	var subs []*nats.Subscription
	n, err := natscli.Connect(SERVICE_NAME + "_service_" + instanceId)
	if err != nil {
		log.Warnf("catalog events disabled, unable to connect to NATS server: %v", err)
	} else {
		defer n.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b := broker.NewBroker(n.Conn)
		b.PageDelay = cfg.SyncPageDelay
		reporters = append(reporters, b)
		defer b.Wait()

		if cfg.AutoEmbed && similarity != nil {
			b.Embedder = similarity
			sub, err := b.SubscribCatalog(comm.CatalogTopic)
			if err != nil {
				log.Errorf("Error: unable to subscribe to %s %v", comm.CatalogTopic, err)
				os.Exit(1)
			}
			subs = append(subs, sub)
		}
	}

	source := pokemontcg.NewClient(cfg.CardSourceURL, cfg.CardSourceKey)
	svc.Sync = service.NewSyncService(source, cardStore, cfg.PageTimeout, reporters...)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(svc)
	h.PageDelay = cfg.SyncPageDelay
	if err := h.InitAuth(cfg.JWTSecret); err != nil {
		log.Fatalf("Failed to init auth: %v", err)
	}
	h.SetRoutes(r)

	// Create server with timeout settings; sync routes carry their own
	// shorter deadline
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: h.SyncTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
