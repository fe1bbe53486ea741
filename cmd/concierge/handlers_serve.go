package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/concierge/internal/api"
	"github.com/haasonsaas/concierge/internal/bot"
	"github.com/haasonsaas/concierge/internal/config"
	"github.com/haasonsaas/concierge/internal/faqedit"
	"github.com/haasonsaas/concierge/internal/guests"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/internal/questions"
	"github.com/haasonsaas/concierge/internal/reminders"
	"github.com/haasonsaas/concierge/internal/storage"
)

// runServe wires every component and blocks until SIGINT/SIGTERM.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Logging, debug, os.Stdout)
	slog.SetDefault(logger)

	loc, err := cfg.Event.Location()
	if err != nil {
		return err
	}
	eventStart, err := cfg.Event.Start()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	dialect, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrateEnabled() {
		if err := migrate(ctx, db, dialect, logger); err != nil {
			_ = db.Close()
			return err
		}
	}
	stores := storage.NewSQLStores(db, metrics.ObserveQuery)
	defer stores.Close()

	adapter, err := newTelegramAdapter(cfg.Telegram, logger)
	if err != nil {
		return err
	}
	registry.MustRegister(observability.NewAdapterCollector(adapter.Metrics))

	editor, err := faqedit.NewManager(faqedit.Config{
		Store:         stores.FAQ,
		Messenger:     adapter,
		SkipDirective: cfg.Telegram.SkipDirective,
		ExitMarkup:    bot.AdminMenu(),
		Gauges:        metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	questionSvc, err := questions.NewService(questions.Config{
		Store:       stores.Questions,
		Messenger:   adapter,
		AnswererID:  cfg.Access.AnswererID,
		GuestMarkup: bot.MainMenu(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	guestSvc, err := guests.NewService(guests.Config{
		Store:     stores.Guests,
		Messenger: adapter,
		Owners:    cfg.Access.OwnerIDs,
		Location:  loc,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var reminderSvc *reminders.Service
	if cfg.Reminders.IsEnabled() {
		reminderSvc, err = reminders.NewService(reminders.Config{
			Users:      stores.Users,
			Messenger:  adapter,
			EventStart: eventStart,
			Title:      cfg.Event.Title,
			Schedule:   cfg.Reminders.Schedule,
			Metrics:    metrics,
			Tracer:     tracer,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
	}

	botCfg := bot.Config{
		Messenger:  adapter,
		Access:     cfg.Access,
		FAQ:        stores.FAQ,
		Users:      stores.Users,
		FAQEditor:  editor,
		Questions:  questionSvc,
		Guests:     guestSvc,
		EventTitle: cfg.Event.Title,
		Metrics:    metrics,
		Tracer:     tracer,
		Logger:     logger,
	}
	if reminderSvc != nil {
		botCfg.Reminders = reminderSvc
	}
	dispatcher, err := bot.New(botCfg)
	if err != nil {
		return err
	}

	if err := adapter.Start(ctx, dispatcher); err != nil {
		return fmt.Errorf("start telegram adapter: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := adapter.Stop(stopCtx); err != nil {
			logger.Warn("telegram adapter stop failed", "error", err)
		}
	}()

	if reminderSvc != nil {
		reminderSvc.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := reminderSvc.Stop(stopCtx); err != nil {
				logger.Warn("reminder scheduler stop failed", "error", err)
			}
		}()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if _, shared := sharedWebhookPath(cfg.Telegram); shared && !cfg.HTTP.IsEnabled() {
		logger.Warn("webhook mode without telegram.webhook_listen needs the http api; updates will not be received")
	}

	if cfg.HTTP.IsEnabled() {
		apiCfg := api.Config{
			Guests:         guestSvc,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			Metrics:        metrics,
			Tracer:         tracer,
			Logger:         logger,
		}
		if path, ok := sharedWebhookPath(cfg.Telegram); ok {
			apiCfg.Webhook = adapter.WebhookHandler()
			apiCfg.WebhookPath = path
		}
		server, err := api.New(apiCfg)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return server.Run(groupCtx, cfg.HTTP.Listen, cfg.HTTP.ShutdownTimeout)
		})
	}

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		dispatcher.SetAccess(next.Access)
	}, logger)
	if err != nil {
		return err
	}
	group.Go(func() error {
		if err := watcher.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			// Serving continues with the loaded configuration.
			logger.Warn("config watcher stopped", "error", err)
		}
		<-groupCtx.Done()
		return nil
	})

	logger.Info("concierge started",
		"event", cfg.Event.Title,
		"event_start", eventStart.Format(time.RFC3339),
		"telegram_mode", cfg.Telegram.Mode,
		"http", cfg.HTTP.IsEnabled(),
		"reminders", reminderSvc != nil)

	err = group.Wait()
	logger.Info("shutting down")
	return err
}

// sharedWebhookPath reports the path the API server should serve Telegram
// updates on: webhook mode without a dedicated listener.
func sharedWebhookPath(cfg config.TelegramConfig) (string, bool) {
	if cfg.Mode != "webhook" || cfg.WebhookListen != "" {
		return "", false
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || u.Path == "" {
		return "/", true
	}
	return u.Path, true
}
