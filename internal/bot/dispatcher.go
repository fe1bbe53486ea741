// Package bot routes chat events to the guest, question, reminder and FAQ
// workflows.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/config"
	"github.com/haasonsaas/concierge/internal/faqedit"
	"github.com/haasonsaas/concierge/internal/guests"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/internal/questions"
	"github.com/haasonsaas/concierge/internal/reminders"
	"github.com/haasonsaas/concierge/internal/storage"
)

// Recorder receives per-event metrics. *observability.Metrics satisfies it.
type Recorder interface {
	RecordEvent(kind, outcome string)
	ObserveEventDuration(kind string, elapsed time.Duration)
	RecordError(component, errorType string)
}

// ReminderSender broadcasts the admin test reminder.
type ReminderSender interface {
	SendTest(ctx context.Context) (reminders.Result, error)
}

// Config wires a Dispatcher.
type Config struct {
	Messenger channels.Messenger
	Access    config.AccessConfig

	FAQ   storage.FAQStore
	Users storage.UserStore

	FAQEditor *faqedit.Manager
	Questions *questions.Service
	Guests    *guests.Service

	// Reminders is nil when the scheduler is disabled.
	Reminders ReminderSender

	// EventTitle is used in greetings.
	EventTitle string

	Metrics Recorder
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// Dispatcher implements channels.Handler. Events of one user are handled
// one at a time in arrival order.
type Dispatcher struct {
	messenger channels.Messenger
	faq       storage.FAQStore
	users     storage.UserStore
	editor    *faqedit.Manager
	questions *questions.Service
	guests    *guests.Service
	reminders ReminderSender
	title     string
	metrics   Recorder
	tracer    *observability.Tracer
	logger    *slog.Logger

	access atomic.Pointer[config.AccessConfig]
	turns  *turnLocks
}

var _ channels.Handler = (*Dispatcher)(nil)

// New validates cfg and creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	switch {
	case cfg.Messenger == nil:
		return nil, errors.New("bot: messenger is required")
	case cfg.FAQ == nil || cfg.Users == nil:
		return nil, errors.New("bot: faq and user stores are required")
	case cfg.FAQEditor == nil || cfg.Questions == nil || cfg.Guests == nil:
		return nil, errors.New("bot: faq editor, question and guest services are required")
	}
	if cfg.EventTitle == "" {
		cfg.EventTitle = "our celebration"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Dispatcher{
		messenger: cfg.Messenger,
		faq:       cfg.FAQ,
		users:     cfg.Users,
		editor:    cfg.FAQEditor,
		questions: cfg.Questions,
		guests:    cfg.Guests,
		reminders: cfg.Reminders,
		title:     cfg.EventTitle,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.With("component", "bot"),
		turns:     newTurnLocks(),
	}
	access := cfg.Access
	d.access.Store(&access)
	return d, nil
}

// SetAccess swaps the role lists, e.g. after a config reload. The answerer
// and owner lists of the question and guest services follow.
func (d *Dispatcher) SetAccess(access config.AccessConfig) {
	d.access.Store(&access)
	d.questions.SetAnswerer(access.AnswererID)
	d.guests.SetOwners(access.OwnerIDs)
	d.logger.Info("access lists updated",
		"admins", len(access.AdminIDs),
		"owners", len(access.OwnerIDs))
}

func (d *Dispatcher) roles() *config.AccessConfig {
	return d.access.Load()
}

// HandleEvent routes one inbound event.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *channels.Event) {
	if ev == nil {
		return
	}
	start := time.Now()
	kind := string(ev.Kind)

	ctx = observability.AddUserID(ctx, ev.From.ID)
	ctx = observability.AddChatID(ctx, ev.ChatID)
	var span trace.Span
	if d.tracer != nil {
		ctx, span = d.tracer.TraceEvent(ctx, kind, ev.From.ID)
		defer span.End()
	}

	release, err := d.turns.acquire(ctx, ev.From.ID)
	if err != nil {
		d.logger.Warn("dropped event while waiting for previous one", "user_id", ev.From.ID, "error", err)
		return
	}
	defer release()

	switch ev.Kind {
	case channels.EventCallback:
		err = d.handleCallback(ctx, ev)
	default:
		err = d.handleMessage(ctx, ev)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		d.logger.ErrorContext(ctx, "event handling failed",
			"kind", kind,
			"error", err)
		if d.metrics != nil {
			d.metrics.RecordError("bot", kind)
		}
		if span != nil {
			d.tracer.RecordError(span, err)
		}
	}
	if d.metrics != nil {
		d.metrics.RecordEvent(kind, outcome)
		d.metrics.ObserveEventDuration(kind, time.Since(start))
	}
}

func (d *Dispatcher) menuFor(userID int64) channels.ReplyKeyboard {
	if d.roles().IsAdmin(userID) {
		return AdminMenu()
	}
	return MainMenu()
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, markup channels.Markup) {
	if _, err := d.messenger.Send(ctx, chatID, text, markup); err != nil {
		d.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
