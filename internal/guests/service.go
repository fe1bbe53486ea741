// Package guests stores registrations from the website form and tells the
// hosts about them.
package guests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

// Recorder receives registration metrics.
type Recorder interface {
	RecordRegistration(source, status string)
}

// Config configures a Service.
type Config struct {
	Store storage.GuestStore

	// Messenger delivers owner notifications. Nil disables them.
	Messenger channels.Messenger

	// Owners are chat ids notified about every registration.
	Owners []int64

	// Location renders timestamps. Defaults to UTC.
	Location *time.Location

	Metrics Recorder
	Logger  *slog.Logger
}

// Service registers guests and reports on them.
type Service struct {
	store     storage.GuestStore
	messenger channels.Messenger
	location  *time.Location
	metrics   Recorder
	logger    *slog.Logger

	mu     sync.RWMutex
	owners []int64
}

// NewService creates a guest service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("guests: store is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		messenger: cfg.Messenger,
		location:  cfg.Location,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("component", "guests"),
		owners:    slices.Clone(cfg.Owners),
	}, nil
}

// SetOwners replaces the notified owner ids.
func (s *Service) SetOwners(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = slices.Clone(ids)
}

// Location returns the timezone used for rendering.
func (s *Service) Location() *time.Location {
	return s.location
}

// Register validates and stores a registration, then notifies the owners.
// Notification failures are logged and do not fail the registration.
func (s *Service) Register(ctx context.Context, reg *Registration, source Source) (*models.Guest, error) {
	if reg == nil {
		return nil, &ValidationError{Message: "registration is empty"}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	guest := reg.Guest()
	if err := s.store.Create(ctx, guest); err != nil {
		return nil, fmt.Errorf("store guest: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordRegistration(string(source), string(guest.Status))
	}
	s.logger.Info("guest registered",
		"guest_id", guest.ID,
		"guest_count", guest.GuestCount,
		"status", guest.Status,
		"source", source)

	s.notifyOwners(ctx, guest)
	return guest, nil
}

func (s *Service) notifyOwners(ctx context.Context, guest *models.Guest) {
	if s.messenger == nil {
		return
	}
	s.mu.RLock()
	owners := slices.Clone(s.owners)
	s.mu.RUnlock()

	text := FormatNotification(guest, s.location)
	for _, id := range owners {
		if _, err := s.messenger.Send(ctx, id, text, nil); err != nil {
			s.logger.Warn("failed to notify owner", "owner_id", id, "guest_id", guest.ID, "error", err)
		}
	}
}

// List returns all registrations, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Guest, error) {
	guests, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return guests, nil
}

// Stats aggregates registrations by status.
func (s *Service) Stats(ctx context.Context) (storage.GuestStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return storage.GuestStats{}, fmt.Errorf("guest stats: %w", err)
	}
	return stats, nil
}
