package storage

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/concierge/pkg/models"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// FAQStore persists FAQ entries.
type FAQStore interface {
	// ListOrdered returns all items by ascending display order.
	ListOrdered(ctx context.Context) ([]*models.FAQItem, error)
	Get(ctx context.Context, id int64) (*models.FAQItem, error)
	Create(ctx context.Context, question, answer string, order int) (*models.FAQItem, error)
	// Update returns ErrNotFound when the item no longer exists.
	Update(ctx context.Context, id int64, question, answer string) (*models.FAQItem, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	// NextOrder returns max(order)+1, or 0 for an empty store.
	NextOrder(ctx context.Context) (int, error)
}

// GuestStats aggregates registrations per confirmation status.
type GuestStats struct {
	Registrations int
	TotalGuests   int
	ByStatus      map[models.ConfirmationStatus]StatusCount
}

// StatusCount is the number of registrations and people for one status.
type StatusCount struct {
	Registrations int
	Guests        int
}

// GuestStore persists guest registrations.
type GuestStore interface {
	Create(ctx context.Context, guest *models.Guest) error
	Get(ctx context.Context, id int64) (*models.Guest, error)
	// List returns registrations newest first.
	List(ctx context.Context) ([]*models.Guest, error)
	Stats(ctx context.Context) (GuestStats, error)
}

// QuestionStore persists guest questions and their answers.
type QuestionStore interface {
	Create(ctx context.Context, question *models.Question) error
	Get(ctx context.Context, id int64) (*models.Question, error)
	Answer(ctx context.Context, id int64, answer string, answeredBy int64, at time.Time) (*models.Question, error)
	ListPending(ctx context.Context) ([]*models.Question, error)
}

// UserStore persists everyone who talked to the bot.
type UserStore interface {
	// Upsert inserts a new subscribed user or refreshes names and the
	// last interaction time of an existing one.
	Upsert(ctx context.Context, user *models.BotUser) (*models.BotUser, error)
	Get(ctx context.Context, userID int64) (*models.BotUser, error)
	SetSubscribed(ctx context.Context, userID int64, subscribed bool) error
	// ListSubscribed returns active users who opted into reminders.
	ListSubscribed(ctx context.Context) ([]*models.BotUser, error)
}

// StoreSet groups storage dependencies.
type StoreSet struct {
	FAQ       FAQStore
	Guests    GuestStore
	Questions QuestionStore
	Users     UserStore
	closer    func() error
}

// Close closes any underlying resources.
func (s StoreSet) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
