// Package reminders broadcasts countdown messages to subscribed users as the
// event approaches.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/pkg/models"
)

// DefaultSchedule checks the milestones once an hour.
const DefaultSchedule = "@hourly"

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule validates a cron expression or descriptor.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Milestone is a countdown day that triggers a broadcast.
type Milestone struct {
	Days     int
	Kind     string
	Headline string
}

// Milestones are checked on every run.
var Milestones = []Milestone{
	{Days: 30, Kind: "month", Headline: "📅 <b>One month to go!</b>"},
	{Days: 7, Kind: "week", Headline: "📅 <b>One week to go!</b>"},
	{Days: 1, Kind: "day", Headline: "🎊 <b>It's tomorrow!</b>"},
}

// Audience lists broadcast recipients. Users who blocked the bot are
// unsubscribed through SetSubscribed.
type Audience interface {
	ListSubscribed(ctx context.Context) ([]*models.BotUser, error)
	SetSubscribed(ctx context.Context, userID int64, subscribed bool) error
}

// Recorder receives broadcast outcomes.
type Recorder interface {
	RecordReminder(milestone string, sent, failed int)
}

// Config configures a Service.
type Config struct {
	Users     Audience
	Messenger channels.Messenger

	// EventStart is the event start in the event timezone. Countdown days
	// are calendar days in that timezone.
	EventStart time.Time

	// Title names the event in messages, e.g. "our wedding".
	Title string

	// Schedule is a cron expression or descriptor. Defaults to @hourly.
	Schedule string

	Metrics Recorder
	Tracer  *observability.Tracer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result summarizes one broadcast.
type Result struct {
	Sent   int
	Failed int
	Total  int
}

// Service runs the milestone check on a cron schedule. Each milestone is
// sent at most once per process.
type Service struct {
	users     Audience
	messenger channels.Messenger
	start     time.Time
	title     string
	schedule  cron.Schedule
	metrics   Recorder
	tracer    *observability.Tracer
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	sent map[string]bool
	cron *cron.Cron
}

// NewService validates the configuration and creates a stopped service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("reminders: user store is required")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("reminders: messenger is required")
	}
	if cfg.EventStart.IsZero() {
		return nil, errors.New("reminders: event start is required")
	}
	sched, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Title == "" {
		cfg.Title = "the event"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:     cfg.Users,
		messenger: cfg.Messenger,
		start:     cfg.EventStart,
		title:     cfg.Title,
		schedule:  sched,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.With("component", "reminders"),
		now:       cfg.Now,
		sent:      make(map[string]bool),
	}, nil
}

// Start schedules the milestone check. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	s.cron = cron.New(cron.WithLocation(s.start.Location()))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Check(ctx); err != nil {
			s.logger.Error("reminder check failed", "error", err)
		}
	}))
	s.cron.Start()
	s.logger.Info("reminder scheduler started",
		"event_start", s.start.Format(time.RFC3339),
		"next_run", s.schedule.Next(s.now().In(s.start.Location())).Format(time.RFC3339))
}

// Stop halts the scheduler and waits for a running check to finish or ctx
// to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		s.logger.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DaysUntil counts calendar days from now to the event day in the event's
// timezone.
func DaysUntil(now, event time.Time) int {
	y, m, d := now.In(event.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := event.Date()
	day := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(day.Sub(today).Hours() / 24)
}

// Check sends the milestone reminder due today, if any and not yet sent.
// It returns the milestone that was broadcast, or nil.
func (s *Service) Check(ctx context.Context) (*Milestone, error) {
	days := DaysUntil(s.now(), s.start)
	for i := range Milestones {
		m := &Milestones[i]
		if m.Days != days {
			continue
		}
		key := s.start.Format("2006-01-02") + "_" + m.Kind

		s.mu.Lock()
		done := s.sent[key]
		if !done {
			s.sent[key] = true
		}
		s.mu.Unlock()
		if done {
			return nil, nil
		}

		res, err := s.broadcast(ctx, m.Kind, m.Headline+"\n\n"+s.countdownText(days))
		if err != nil {
			s.mu.Lock()
			delete(s.sent, key)
			s.mu.Unlock()
			return nil, err
		}
		s.logger.Info("reminder broadcast finished",
			"milestone", m.Kind, "sent", res.Sent, "failed", res.Failed, "total", res.Total)
		return m, nil
	}
	return nil, nil
}

// SendTest broadcasts a test reminder to every subscribed user.
func (s *Service) SendTest(ctx context.Context) (Result, error) {
	days := DaysUntil(s.now(), s.start)
	text := "📅 <b>Test reminder</b>\n\nThis message checks that reminders are delivered.\n\n" + s.countdownText(days)
	return s.broadcast(ctx, "test", text)
}

func (s *Service) broadcast(ctx context.Context, kind, text string) (res Result, err error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.TraceReminder(ctx, kind)
		defer func() {
			span.SetAttributes(
				attribute.Int("reminder.sent", res.Sent),
				attribute.Int("reminder.failed", res.Failed))
			s.tracer.RecordError(span, err)
			span.End()
		}()
	}

	users, err := s.users.ListSubscribed(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list subscribed users: %w", err)
	}
	res.Total = len(users)
	for _, u := range users {
		if _, err := s.messenger.Send(ctx, u.UserID, text, nil); err != nil {
			res.Failed++
			s.logger.Warn("failed to send reminder", "user_id", u.UserID, "milestone", kind, "error", err)
			if channels.GetErrorCode(err) == channels.ErrCodeForbidden {
				s.unsubscribe(ctx, u.UserID)
			}
			continue
		}
		res.Sent++
	}
	if s.metrics != nil {
		s.metrics.RecordReminder(kind, res.Sent, res.Failed)
	}
	return res, nil
}

// unsubscribe drops a user who blocked the bot from later broadcasts.
// /reminders on subscribes them again.
func (s *Service) unsubscribe(ctx context.Context, userID int64) {
	if err := s.users.SetSubscribed(ctx, userID, false); err != nil {
		s.logger.Warn("failed to unsubscribe blocked user", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("unsubscribed blocked user", "user_id", userID)
}

func (s *Service) countdownText(days int) string {
	unit := "days"
	if days == 1 || days == -1 {
		unit = "day"
	}
	return fmt.Sprintf("💍 <b>%d %s</b> left until %s!\n\n📆 <b>Date:</b> %s\n🕐 <b>Time:</b> %s\n\n"+
		"We can't wait to see you! If you have any questions, ask them through the bot 🤗",
		days, unit, html.EscapeString(s.title), s.start.Format("02.01.2006"), s.start.Format("15:04"))
}
