package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/concierge/pkg/models"
)

// NewMemoryStores returns a StoreSet backed entirely by process memory.
func NewMemoryStores() StoreSet {
	return StoreSet{
		FAQ:       NewMemoryFAQStore(),
		Guests:    NewMemoryGuestStore(),
		Questions: NewMemoryQuestionStore(),
		Users:     NewMemoryUserStore(),
	}
}

// MemoryFAQStore provides an in-memory FAQStore.
type MemoryFAQStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*models.FAQItem
}

// NewMemoryFAQStore creates an in-memory FAQ store.
func NewMemoryFAQStore() *MemoryFAQStore {
	return &MemoryFAQStore{items: make(map[int64]*models.FAQItem)}
}

func (s *MemoryFAQStore) ListOrdered(ctx context.Context) ([]*models.FAQItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]*models.FAQItem, 0, len(s.items))
	for _, item := range s.items {
		clone := *item
		items = append(items, &clone)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryFAQStore) Get(ctx context.Context, id int64) (*models.FAQItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *MemoryFAQStore) Create(ctx context.Context, question, answer string, order int) (*models.FAQItem, error) {
	if err := validateFAQ(question, answer); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	item := &models.FAQItem{
		ID:        s.nextID,
		Question:  question,
		Answer:    answer,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.ID] = item
	clone := *item
	return &clone, nil
}

func (s *MemoryFAQStore) Update(ctx context.Context, id int64, question, answer string) (*models.FAQItem, error) {
	if err := validateFAQ(question, answer); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item.Question = question
	item.Answer = answer
	item.UpdatedAt = time.Now().UTC()
	clone := *item
	return &clone, nil
}

func (s *MemoryFAQStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *MemoryFAQStore) NextOrder(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return 0, nil
	}
	maxOrder := 0
	first := true
	for _, item := range s.items {
		if first || item.Order > maxOrder {
			maxOrder = item.Order
			first = false
		}
	}
	return maxOrder + 1, nil
}

// MemoryGuestStore provides an in-memory GuestStore.
type MemoryGuestStore struct {
	mu     sync.RWMutex
	nextID int64
	guests map[int64]*models.Guest
}

// NewMemoryGuestStore creates an in-memory guest store.
func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{guests: make(map[int64]*models.Guest)}
}

func (s *MemoryGuestStore) Create(ctx context.Context, guest *models.Guest) error {
	if guest == nil || strings.TrimSpace(guest.Name) == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	guest.ID = s.nextID
	if guest.Status == "" {
		guest.Status = models.StatusPending
	}
	guest.CreatedAt = now
	guest.UpdatedAt = now
	clone := *guest
	s.guests[guest.ID] = &clone
	return nil
}

func (s *MemoryGuestStore) Get(ctx context.Context, id int64) (*models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guest, ok := s.guests[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *guest
	return &clone, nil
}

func (s *MemoryGuestStore) List(ctx context.Context) ([]*models.Guest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	guests := make([]*models.Guest, 0, len(s.guests))
	for _, guest := range s.guests {
		clone := *guest
		guests = append(guests, &clone)
	}
	sort.Slice(guests, func(i, j int) bool {
		if !guests[i].CreatedAt.Equal(guests[j].CreatedAt) {
			return guests[i].CreatedAt.After(guests[j].CreatedAt)
		}
		return guests[i].ID > guests[j].ID
	})
	return guests, nil
}

func (s *MemoryGuestStore) Stats(ctx context.Context) (GuestStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := GuestStats{ByStatus: make(map[models.ConfirmationStatus]StatusCount)}
	for _, guest := range s.guests {
		stats.Registrations++
		stats.TotalGuests += guest.GuestCount
		count := stats.ByStatus[guest.Status]
		count.Registrations++
		count.Guests += guest.GuestCount
		stats.ByStatus[guest.Status] = count
	}
	return stats, nil
}

// MemoryQuestionStore provides an in-memory QuestionStore.
type MemoryQuestionStore struct {
	mu        sync.RWMutex
	nextID    int64
	questions map[int64]*models.Question
}

// NewMemoryQuestionStore creates an in-memory question store.
func NewMemoryQuestionStore() *MemoryQuestionStore {
	return &MemoryQuestionStore{questions: make(map[int64]*models.Question)}
}

func (s *MemoryQuestionStore) Create(ctx context.Context, question *models.Question) error {
	if question == nil || strings.TrimSpace(question.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	question.ID = s.nextID
	question.CreatedAt = time.Now().UTC()
	clone := *question
	s.questions[question.ID] = &clone
	return nil
}

func (s *MemoryQuestionStore) Get(ctx context.Context, id int64) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *question
	return &clone, nil
}

func (s *MemoryQuestionStore) Answer(ctx context.Context, id int64, answer string, answeredBy int64, at time.Time) (*models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	answeredAt := at.UTC()
	question.Answer = answer
	question.AnsweredBy = answeredBy
	question.AnsweredAt = &answeredAt
	clone := *question
	return &clone, nil
}

func (s *MemoryQuestionStore) ListPending(ctx context.Context) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := []*models.Question{}
	for _, question := range s.questions {
		if question.Answered() {
			continue
		}
		clone := *question
		pending = append(pending, &clone)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ID < pending[j].ID
	})
	return pending, nil
}

// MemoryUserStore provides an in-memory UserStore.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*models.BotUser
}

// NewMemoryUserStore creates an in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[int64]*models.BotUser)}
}

func (s *MemoryUserStore) Upsert(ctx context.Context, user *models.BotUser) (*models.BotUser, error) {
	if user == nil || user.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := s.users[user.UserID]
	if !ok {
		s.nextID++
		existing = &models.BotUser{
			ID:                    s.nextID,
			UserID:                user.UserID,
			Active:                true,
			SubscribedToReminders: true,
			CreatedAt:             now,
		}
		s.users[user.UserID] = existing
	}
	existing.Username = user.Username
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.LastInteraction = now
	clone := *existing
	return &clone, nil
}

func (s *MemoryUserStore) Get(ctx context.Context, userID int64) (*models.BotUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *MemoryUserStore) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.SubscribedToReminders = subscribed
	return nil
}

func (s *MemoryUserStore) ListSubscribed(ctx context.Context) ([]*models.BotUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := []*models.BotUser{}
	for _, user := range s.users {
		if !user.Active || !user.SubscribedToReminders {
			continue
		}
		clone := *user
		users = append(users, &clone)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func validateFAQ(question, answer string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if len([]rune(question)) > models.MaxFAQQuestionLength {
		return fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, models.MaxFAQQuestionLength)
	}
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	return nil
}
