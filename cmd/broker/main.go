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

	"github.com/hihaowen/easysso/internal/platform/config"
	"github.com/hihaowen/easysso/internal/platform/httpserver"
	"github.com/hihaowen/easysso/internal/platform/logger"
	"github.com/hihaowen/easysso/internal/sso/broker"
)

// main runs a standalone broker attached to an SSO server. It resolves the
// shared identity through the gateway and serves the sync endpoint the
// server calls back during login and cascade logout.
func main() {
	cfg := config.BrokerFromEnv()
	log := logger.New(slog.LevelInfo)

	if cfg.Gateway == "" || cfg.BrokerID == "" || cfg.Secret == "" {
		log.Error("SSO_GATEWAY_URL, SSO_BROKER_ID and SSO_BROKER_SECRET are required")
		os.Exit(1)
	}

	b := broker.New(cfg.Gateway, cfg.BrokerID, cfg.Secret, cfg.LoginURL,
		broker.WithLogger(log))

	router := chi.NewRouter()
	broker.NewHandler(b, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("broker listening", "addr", cfg.Addr, "broker_id", cfg.BrokerID, "gateway", cfg.Gateway)
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
	log.Info("broker stopped")
}
