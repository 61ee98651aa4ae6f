// Package main runs the custody service HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/internal/app/httpapi"
	"github.com/nodevault/custody-service/internal/app/metrics"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/app/storage/postgres"
	"github.com/nodevault/custody-service/internal/config"
	"github.com/nodevault/custody-service/internal/mail"
	"github.com/nodevault/custody-service/internal/platform/migrations"
	"github.com/nodevault/custody-service/pkg/logger"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("custody-service", logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	var stores storage.Stores
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		defer db.Close()

		if err := migrations.Apply(db.DB); err != nil {
			log.WithError(err).Fatal("failed to apply migrations")
		}
		stores = postgres.New(db).Stores()
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	var sender mail.Sender
	if cfg.SMTP.Host != "" {
		sender = mail.NewSMTP(cfg.SMTP)
	}

	application, err := app.New(app.Options{
		Stores:    stores,
		Sender:    sender,
		JWTSecret: cfg.Auth.JWTSecret,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start application")
	}

	m := metrics.New("custody")
	handler := httpapi.NewHandler(application, m, httpapi.Config{
		JWTSecret:         cfg.Auth.JWTSecret,
		AllowOrigins:      cfg.Server.AllowOrigins,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, log.WithField("component", "httpapi"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown failed")
	}
}
