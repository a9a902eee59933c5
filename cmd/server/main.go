package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/platform/config"
	"github.com/hihaowen/easysso/internal/platform/httpserver"
	"github.com/hihaowen/easysso/internal/platform/logger"
	"github.com/hihaowen/easysso/internal/platform/metrics"
	platformredis "github.com/hihaowen/easysso/internal/platform/redis"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/server"
	"github.com/hihaowen/easysso/internal/sso/server/handler"
	"github.com/hihaowen/easysso/internal/sso/session"
	"github.com/hihaowen/easysso/internal/sso/store"
)

// main wires the SSO server: broker registry, session state, the token
// bookkeeping store, and the HTTP surface. Business logic lives in
// internal/sso packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	registry, err := models.LoadRegistry(cfg.BrokersFile)
	if err != nil {
		log.Error("load broker registry", "path", cfg.BrokersFile, "error", err)
		os.Exit(1)
	}

	rdb, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}

	var (
		sessionStore store.SessionStore
		state        session.State
	)
	if rdb != nil {
		sessionStore = store.NewRedisStore(rdb.Client, store.WithTTL(cfg.SessionTTL))
		state = session.NewRedisState(rdb.Client, cfg.SessionTTL)
		log.Info("using redis session store", "ttl", cfg.SessionTTL)
	} else {
		sessionStore = store.NewInMemoryStore()
		state = session.NewInMemoryState()
		log.Warn("redis not configured, using in-memory session store")
	}

	publisher := newAuditPublisher(log, cfg.Audit)
	defer publisher.Close()

	svc := server.New(log, registry, sessionStore, session.NewManager(state),
		server.WithMetrics(metrics.New()),
		server.WithAudit(publisher),
		server.WithHost(cfg.Host),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthHandler(rdb))
	handler.New(svc, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("sso server listening", "addr", cfg.Addr, "brokers", len(registry))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		rdb.Close()
	}
	log.Info("sso server stopped")
}

func newAuditPublisher(log *slog.Logger, cfg config.AuditConfig) audit.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NopPublisher{}
	}
	publisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic)
	if err != nil {
		log.Error("connect kafka audit publisher", "error", err)
		os.Exit(1)
	}
	log.Info("audit events published to kafka", "topic", cfg.Topic)
	return publisher
}

func healthHandler(rdb *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
