package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/haasonsaas/concierge/pkg/models"
)

// QueryObserver receives the outcome of every store query.
type QueryObserver func(operation, table string, elapsed time.Duration, err error)

// Open connects to the database for the given dialect and verifies it with a ping.
func Open(dialect Dialect, dsn string, config *PoolConfig) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPoolConfig()
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if dialect == DialectSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewSQLStores creates SQL-backed stores sharing db. Closing the set closes db.
func NewSQLStores(db *sql.DB, observer QueryObserver) StoreSet {
	base := sqlBase{db: db, observer: observer}
	return StoreSet{
		FAQ:       &sqlFAQStore{sqlBase: base},
		Guests:    &sqlGuestStore{sqlBase: base},
		Questions: &sqlQuestionStore{sqlBase: base},
		Users:     &sqlUserStore{sqlBase: base},
		closer:    db.Close,
	}
}

// NewSQLStoresFromDSN opens the database and creates SQL-backed stores.
func NewSQLStoresFromDSN(dialect Dialect, dsn string, config *PoolConfig, observer QueryObserver) (StoreSet, error) {
	db, err := Open(dialect, dsn, config)
	if err != nil {
		return StoreSet{}, err
	}
	return NewSQLStores(db, observer), nil
}

type sqlBase struct {
	db       *sql.DB
	observer QueryObserver
}

func (b sqlBase) track(operation, table string, start time.Time, err error) {
	if b.observer == nil {
		return
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) {
		err = nil
	}
	b.observer(operation, table, time.Since(start), err)
}

// exec runs a single-row mutation and maps zero affected rows to ErrNotFound.
func (b sqlBase) exec(ctx context.Context, operation, table, query string, args ...any) (err error) {
	start := time.Now()
	defer func() { b.track(operation, table, start, err) }()

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const faqColumns = `id, question, answer, position, created_at, updated_at`

type sqlFAQStore struct {
	sqlBase
}

func scanFAQ(row rowScanner) (*models.FAQItem, error) {
	var item models.FAQItem
	if err := row.Scan(&item.ID, &item.Question, &item.Answer, &item.Order, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *sqlFAQStore) ListOrdered(ctx context.Context) (items []*models.FAQItem, err error) {
	start := time.Now()
	defer func() { s.track("select", "faq_items", start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+faqColumns+` FROM faq_items ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list faq items: %w", err)
	}
	defer rows.Close()

	items = []*models.FAQItem{}
	for rows.Next() {
		item, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("scan faq item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list faq items: %w", err)
	}
	return items, nil
}

func (s *sqlFAQStore) Get(ctx context.Context, id int64) (item *models.FAQItem, err error) {
	start := time.Now()
	defer func() { s.track("select", "faq_items", start, err) }()

	item, err = scanFAQ(s.db.QueryRowContext(ctx, `SELECT `+faqColumns+` FROM faq_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get faq item: %w", err)
	}
	return item, nil
}

func (s *sqlFAQStore) Create(ctx context.Context, question, answer string, order int) (item *models.FAQItem, err error) {
	if err := validateFAQ(question, answer); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.track("insert", "faq_items", start, err) }()

	now := time.Now().UTC()
	item = &models.FAQItem{Question: question, Answer: answer, Order: order, CreatedAt: now, UpdatedAt: now}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO faq_items (question, answer, position, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		question, answer, order, now, now,
	).Scan(&item.ID)
	if err != nil {
		return nil, fmt.Errorf("create faq item: %w", err)
	}
	return item, nil
}

func (s *sqlFAQStore) Update(ctx context.Context, id int64, question, answer string) (*models.FAQItem, error) {
	if err := validateFAQ(question, answer); err != nil {
		return nil, err
	}
	if err := s.exec(ctx, "update", "faq_items",
		`UPDATE faq_items SET question = $1, answer = $2, updated_at = $3 WHERE id = $4`,
		question, answer, time.Now().UTC(), id,
	); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update faq item: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *sqlFAQStore) Delete(ctx context.Context, id int64) (deleted bool, err error) {
	start := time.Now()
	defer func() { s.track("delete", "faq_items", start, err) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM faq_items WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete faq item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete faq item: %w", err)
	}
	return affected > 0, nil
}

func (s *sqlFAQStore) NextOrder(ctx context.Context) (next int, err error) {
	start := time.Now()
	defer func() { s.track("select", "faq_items", start, err) }()

	if err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM faq_items`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next faq order: %w", err)
	}
	return next, nil
}

const guestColumns = `id, name, guest_count, confirmation_status, comment, created_at, updated_at`

type sqlGuestStore struct {
	sqlBase
}

func scanGuest(row rowScanner) (*models.Guest, error) {
	var guest models.Guest
	var status string
	if err := row.Scan(&guest.ID, &guest.Name, &guest.GuestCount, &status, &guest.Comment, &guest.CreatedAt, &guest.UpdatedAt); err != nil {
		return nil, err
	}
	guest.Status = models.ConfirmationStatus(status)
	return &guest, nil
}

func (s *sqlGuestStore) Create(ctx context.Context, guest *models.Guest) (err error) {
	if guest == nil || strings.TrimSpace(guest.Name) == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidInput)
	}
	start := time.Now()
	defer func() { s.track("insert", "guests", start, err) }()

	if guest.Status == "" {
		guest.Status = models.StatusPending
	}
	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO guests (name, guest_count, confirmation_status, comment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		guest.Name, guest.GuestCount, string(guest.Status), guest.Comment, now, now,
	).Scan(&guest.ID)
	if err != nil {
		return fmt.Errorf("create guest: %w", err)
	}
	guest.CreatedAt = now
	guest.UpdatedAt = now
	return nil
}

func (s *sqlGuestStore) Get(ctx context.Context, id int64) (guest *models.Guest, err error) {
	start := time.Now()
	defer func() { s.track("select", "guests", start, err) }()

	guest, err = scanGuest(s.db.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get guest: %w", err)
	}
	return guest, nil
}

func (s *sqlGuestStore) List(ctx context.Context) (guests []*models.Guest, err error) {
	start := time.Now()
	defer func() { s.track("select", "guests", start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+guestColumns+` FROM guests ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	defer rows.Close()

	guests = []*models.Guest{}
	for rows.Next() {
		guest, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guest: %w", err)
		}
		guests = append(guests, guest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	return guests, nil
}

func (s *sqlGuestStore) Stats(ctx context.Context) (stats GuestStats, err error) {
	start := time.Now()
	defer func() { s.track("select", "guests", start, err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT confirmation_status, COUNT(*), COALESCE(SUM(guest_count), 0)
		 FROM guests GROUP BY confirmation_status`)
	if err != nil {
		return GuestStats{}, fmt.Errorf("guest stats: %w", err)
	}
	defer rows.Close()

	stats.ByStatus = make(map[models.ConfirmationStatus]StatusCount)
	for rows.Next() {
		var status string
		var count StatusCount
		if err := rows.Scan(&status, &count.Registrations, &count.Guests); err != nil {
			return GuestStats{}, fmt.Errorf("scan guest stats: %w", err)
		}
		stats.ByStatus[models.ConfirmationStatus(status)] = count
		stats.Registrations += count.Registrations
		stats.TotalGuests += count.Guests
	}
	if err := rows.Err(); err != nil {
		return GuestStats{}, fmt.Errorf("guest stats: %w", err)
	}
	return stats, nil
}

const questionColumns = `id, from_user_id, from_username, question_text, answer_text, answered_at, answered_by_user_id, created_at`

type sqlQuestionStore struct {
	sqlBase
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var question models.Question
	var answer sql.NullString
	var answeredAt sql.NullTime
	var answeredBy sql.NullInt64
	if err := row.Scan(
		&question.ID,
		&question.FromUserID,
		&question.FromUsername,
		&question.Text,
		&answer,
		&answeredAt,
		&answeredBy,
		&question.CreatedAt,
	); err != nil {
		return nil, err
	}
	question.Answer = answer.String
	question.AnsweredBy = answeredBy.Int64
	if answeredAt.Valid {
		at := answeredAt.Time
		question.AnsweredAt = &at
	}
	return &question, nil
}

func (s *sqlQuestionStore) Create(ctx context.Context, question *models.Question) (err error) {
	if question == nil || strings.TrimSpace(question.Text) == "" {
		return fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	start := time.Now()
	defer func() { s.track("insert", "questions", start, err) }()

	now := time.Now().UTC()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO questions (from_user_id, from_username, question_text, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		question.FromUserID, question.FromUsername, question.Text, now,
	).Scan(&question.ID)
	if err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	question.CreatedAt = now
	return nil
}

func (s *sqlQuestionStore) Get(ctx context.Context, id int64) (question *models.Question, err error) {
	start := time.Now()
	defer func() { s.track("select", "questions", start, err) }()

	question, err = scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return question, nil
}

func (s *sqlQuestionStore) Answer(ctx context.Context, id int64, answer string, answeredBy int64, at time.Time) (*models.Question, error) {
	if err := s.exec(ctx, "update", "questions",
		`UPDATE questions SET answer_text = $1, answered_by_user_id = $2, answered_at = $3 WHERE id = $4`,
		answer, answeredBy, at.UTC(), id,
	); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("answer question: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *sqlQuestionStore) ListPending(ctx context.Context) (questions []*models.Question, err error) {
	start := time.Now()
	defer func() { s.track("select", "questions", start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE answered_at IS NULL ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending questions: %w", err)
	}
	defer rows.Close()

	questions = []*models.Question{}
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending questions: %w", err)
	}
	return questions, nil
}

const userColumns = `id, user_id, username, first_name, last_name, is_active, subscribed_to_reminders, created_at, last_interaction`

type sqlUserStore struct {
	sqlBase
}

func scanUser(row rowScanner) (*models.BotUser, error) {
	var user models.BotUser
	if err := row.Scan(
		&user.ID,
		&user.UserID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Active,
		&user.SubscribedToReminders,
		&user.CreatedAt,
		&user.LastInteraction,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *sqlUserStore) Upsert(ctx context.Context, user *models.BotUser) (saved *models.BotUser, err error) {
	if user == nil || user.UserID == 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	start := time.Now()
	defer func() { s.track("upsert", "bot_users", start, err) }()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bot_users (user_id, username, first_name, last_name, is_active, subscribed_to_reminders, created_at, last_interaction)
		 VALUES ($1, $2, $3, $4, TRUE, TRUE, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_interaction = excluded.last_interaction`,
		user.UserID, user.Username, user.FirstName, user.LastName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert bot user: %w", err)
	}
	return s.Get(ctx, user.UserID)
}

func (s *sqlUserStore) Get(ctx context.Context, userID int64) (user *models.BotUser, err error) {
	start := time.Now()
	defer func() { s.track("select", "bot_users", start, err) }()

	user, err = scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM bot_users WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bot user: %w", err)
	}
	return user, nil
}

func (s *sqlUserStore) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	err := s.exec(ctx, "update", "bot_users",
		`UPDATE bot_users SET subscribed_to_reminders = $1 WHERE user_id = $2`, subscribed, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update bot user subscription: %w", err)
	}
	return err
}

func (s *sqlUserStore) ListSubscribed(ctx context.Context) (users []*models.BotUser, err error) {
	start := time.Now()
	defer func() { s.track("select", "bot_users", start, err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM bot_users
		 WHERE is_active = TRUE AND subscribed_to_reminders = TRUE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}
	defer rows.Close()

	users = []*models.BotUser{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}
	return users, nil
}
