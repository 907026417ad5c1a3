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
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/deckbuilder-services/configs"
	"github.com/avvvet/deckbuilder-services/internal/comm"
	deckconfig "github.com/avvvet/deckbuilder-services/internal/decksvc/config"
	"github.com/avvvet/deckbuilder-services/internal/nats"

	"github.com/avvvet/deckbuilder-services/internal/notifysvc/broker"
	"github.com/avvvet/deckbuilder-services/internal/notifysvc/routes"
	"github.com/avvvet/deckbuilder-services/internal/notifysvc/ws"
)

const SERVICE_NAME = "notify"

func init() {
	instanceId := "001"
	config.Logging(SERVICE_NAME+"_service_"+instanceId, false)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := deckconfig.Load()

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "_service")
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	s := ws.NewWs()
	routes.SetRoutes(r, s)

	// relay catalog events to every socket
	b := broker.NewBroker(n.Conn, s.Broadcast)
	sub, err := b.Subscribe(comm.CatalogTopic)
	if err != nil {
		log.Errorf("Error: unable to subscribe to %s %v", comm.CatalogTopic, err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:        ":" + cfg.NotifyPort,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
