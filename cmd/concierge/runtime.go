package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/haasonsaas/concierge/internal/channels/telegram"
	"github.com/haasonsaas/concierge/internal/config"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/internal/storage"
)

// newLogger builds the process logger from the logging section. debug
// overrides the configured level.
func newLogger(cfg config.LoggingConfig, debug bool, out io.Writer) *slog.Logger {
	level := cfg.Level
	if debug {
		level = "debug"
	}
	if out == nil {
		out = os.Stdout
	}
	return observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	})
}

// openDatabase opens the configured database and returns its dialect.
func openDatabase(cfg *config.Config) (storage.Dialect, *sql.DB, error) {
	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return "", nil, err
	}
	pool := storage.DefaultPoolConfig()
	if cfg.Database.MaxConnections > 0 {
		pool.MaxOpenConns = cfg.Database.MaxConnections
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	db, err := storage.Open(dialect, cfg.Database.URL, pool)
	if err != nil {
		return "", nil, err
	}
	return dialect, db, nil
}

// migrate applies every pending migration and logs what ran.
func migrate(ctx context.Context, db *sql.DB, dialect storage.Dialect, logger *slog.Logger) error {
	migrator, err := storage.NewMigrator(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	applied, err := migrator.Up(ctx, 0)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, id := range applied {
		logger.Info("applied migration", "id", id)
	}
	return nil
}

// newTelegramAdapter maps the telegram section onto the adapter config.
func newTelegramAdapter(cfg config.TelegramConfig, logger *slog.Logger) (*telegram.Adapter, error) {
	return telegram.NewAdapter(telegram.Config{
		Token:                cfg.BotToken,
		Mode:                 telegram.Mode(cfg.Mode),
		WebhookURL:           cfg.WebhookURL,
		ListenAddr:           cfg.WebhookListen,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		RateLimit:            cfg.RateLimit,
		RateBurst:            cfg.RateBurst,
		Logger:               logger,
	})
}
