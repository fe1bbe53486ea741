// Package faqedit runs the admin conversations that add and edit FAQ items.
//
// A Manager keeps three process-lifetime tables: add sessions and edit
// sessions keyed by responder, and item locks keyed by FAQ id. An item is
// locked exactly while some edit session targets it, so two admins never
// rewrite the same entry at once. Nothing is persisted; a restart drops every
// in-progress conversation together with its lock.
package faqedit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

// DefaultSkipDirective keeps the current value at an edit step.
const DefaultSkipDirective = "/skip"

// Store is the FAQ persistence the manager needs. storage.FAQStore
// satisfies it.
type Store interface {
	ListOrdered(ctx context.Context) ([]*models.FAQItem, error)
	Get(ctx context.Context, id int64) (*models.FAQItem, error)
	Create(ctx context.Context, question, answer string, order int) (*models.FAQItem, error)
	Update(ctx context.Context, id int64, question, answer string) (*models.FAQItem, error)
	Delete(ctx context.Context, id int64) (bool, error)
	NextOrder(ctx context.Context) (int, error)
}

// Gauges receives the table sizes after every change.
type Gauges interface {
	SetFAQSessions(add, edit int)
	SetFAQLocks(n int)
}

// Responder identifies the admin driving a conversation and where replies go.
type Responder struct {
	UserID int64
	ChatID int64

	// Origin is the message whose button started the action. When set,
	// menus and prompts replace it in place instead of posting a new message.
	Origin channels.MessageRef
}

// Config configures a Manager.
type Config struct {
	Store     Store
	Messenger channels.Messenger

	// SkipDirective defaults to DefaultSkipDirective.
	SkipDirective string

	// ExitMarkup is attached to the message sent when leaving the FAQ menu,
	// normally the admin reply keyboard.
	ExitMarkup channels.Markup

	Gauges Gauges
	Logger *slog.Logger
}

// Stats is a point-in-time view of the session tables.
type Stats struct {
	AddSessions  int
	EditSessions int
	Locks        int
}

// Manager mediates the add and edit workflows.
//
// All methods are safe for concurrent use. Store and messenger calls are made
// without holding the table mutex; a step that finds its session replaced
// after such a call leaves the newer state alone.
type Manager struct {
	store     Store
	messenger channels.Messenger
	skip      string
	exit      channels.Markup
	gauges    Gauges
	logger    *slog.Logger

	mu    sync.Mutex
	adds  map[int64]*AddSession
	edits map[int64]*EditSession
	locks *LockTable
}

// NewManager creates a Manager with empty tables.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("faqedit: store is required")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("faqedit: messenger is required")
	}
	skip := strings.TrimSpace(cfg.SkipDirective)
	if skip == "" {
		skip = DefaultSkipDirective
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     cfg.Store,
		messenger: cfg.Messenger,
		skip:      skip,
		exit:      cfg.ExitMarkup,
		gauges:    cfg.Gauges,
		logger:    logger.With("component", "faqedit"),
		adds:      make(map[int64]*AddSession),
		edits:     make(map[int64]*EditSession),
		locks:     NewLockTable(),
	}, nil
}

// SkipDirective returns the token that keeps a value unchanged.
func (m *Manager) SkipDirective() string {
	return m.skip
}

// Stats returns the current table sizes.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

// LockHolder returns the responder editing faqID, if any.
func (m *Manager) LockHolder(faqID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks.Holder(faqID)
}

// Active reports whether responder is in the middle of an add or edit.
func (m *Manager) Active(responder int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adds[responder] != nil || m.edits[responder] != nil
}

// ShowMenu renders the management menu with the current entry count.
func (m *Manager) ShowMenu(ctx context.Context, r Responder) error {
	items, err := m.store.ListOrdered(ctx)
	if err != nil {
		m.reply(ctx, r, msgLoadFailed, nil)
		return fmt.Errorf("list faq: %w", err)
	}
	m.reply(ctx, r, menuText(len(items)), managementKeyboard(len(items) == 0))
	return nil
}

// ShowList renders every item with edit and delete buttons.
func (m *Manager) ShowList(ctx context.Context, r Responder) error {
	items, err := m.store.ListOrdered(ctx)
	if err != nil {
		m.reply(ctx, r, msgLoadFailed, nil)
		return fmt.Errorf("list faq: %w", err)
	}
	if len(items) == 0 {
		m.reply(ctx, r, listText(nil), managementKeyboard(true))
		return nil
	}
	m.reply(ctx, r, listText(items), listKeyboard(items))
	return nil
}

// Back returns from the item list to the management menu.
func (m *Manager) Back(ctx context.Context, r Responder) error {
	return m.ShowMenu(ctx, r)
}

// Exit leaves FAQ management. Any conversation the responder left open is
// canceled so its lock does not outlive the menu.
func (m *Manager) Exit(ctx context.Context, r Responder) {
	if m.CancelAll(r.UserID) {
		m.logger.Info("canceled open faq session on exit", "user_id", r.UserID)
	}
	m.send(ctx, r.ChatID, msgExit, m.exit)
}

// BeginAdd starts a new add conversation, replacing any earlier one. An open
// edit session of the same responder is canceled and its lock released.
func (m *Manager) BeginAdd(ctx context.Context, r Responder) {
	m.mu.Lock()
	m.dropEditLocked(r.UserID)
	m.adds[r.UserID] = &AddSession{Stage: AwaitingQuestion}
	m.publishLocked()
	m.mu.Unlock()

	m.reply(ctx, r, addPromptText(), nil)
}

// ReceiveAddQuestion captures the question of an add conversation. It
// returns false when the responder is not waiting to enter one.
func (m *Manager) ReceiveAddQuestion(ctx context.Context, r Responder, text string) (bool, error) {
	m.mu.Lock()
	sess := m.adds[r.UserID]
	if sess == nil || sess.Stage != AwaitingQuestion {
		m.mu.Unlock()
		return false, nil
	}
	sess.Question = text
	sess.Stage = AwaitingAnswer
	m.mu.Unlock()

	m.send(ctx, r.ChatID, addAnswerPromptText(text), nil)
	return true, nil
}

// ReceiveAddAnswer stores the new item at the end of the display order and
// shows the management menu again. It returns false when the responder is
// not waiting to enter an answer.
func (m *Manager) ReceiveAddAnswer(ctx context.Context, r Responder, text string) (bool, error) {
	m.mu.Lock()
	sess := m.adds[r.UserID]
	if sess == nil || sess.Stage != AwaitingAnswer {
		m.mu.Unlock()
		return false, nil
	}
	question := sess.Question
	m.mu.Unlock()

	// NextOrder and Create are not atomic; two concurrent adds may share an
	// order value, which only affects their relative position.
	order, err := m.store.NextOrder(ctx)
	if err != nil {
		m.endAdd(r.UserID, sess)
		m.send(ctx, r.ChatID, msgSaveFailed, nil)
		return true, fmt.Errorf("next faq order: %w", err)
	}
	item, err := m.store.Create(ctx, question, text, order)
	m.endAdd(r.UserID, sess)
	if err != nil {
		m.send(ctx, r.ChatID, saveFailure(err), nil)
		return true, fmt.Errorf("create faq: %w", err)
	}

	m.logger.Info("faq item created", "user_id", r.UserID, "faq_id", item.ID, "order", item.Order)
	m.send(ctx, r.ChatID, addedText(item), nil)
	return true, m.ShowMenu(ctx, Responder{UserID: r.UserID, ChatID: r.ChatID})
}

// BeginEdit locks faqID for the responder and asks for a replacement
// question. It refuses when another responder holds the lock and reports a
// missing item without creating any state. Restarting an edit the responder
// already holds resets it; switching to another item releases the old lock.
func (m *Manager) BeginEdit(ctx context.Context, r Responder, faqID int64) error {
	if holder, locked := m.LockHolder(faqID); locked && holder != r.UserID {
		m.reply(ctx, r, msgLocked, nil)
		return nil
	}

	item, err := m.store.Get(ctx, faqID)
	if errors.Is(err, storage.ErrNotFound) {
		m.reply(ctx, r, msgNotFound, nil)
		return nil
	}
	if err != nil {
		m.reply(ctx, r, msgLoadFailed, nil)
		return fmt.Errorf("get faq %d: %w", faqID, err)
	}

	m.mu.Lock()
	// Another responder may have locked the item while it was being loaded.
	if !m.locks.TryAcquire(faqID, r.UserID) {
		m.mu.Unlock()
		m.reply(ctx, r, msgLocked, nil)
		return nil
	}
	if prev := m.edits[r.UserID]; prev != nil && prev.FAQID != faqID {
		m.locks.Release(prev.FAQID, r.UserID)
	}
	delete(m.adds, r.UserID)
	m.edits[r.UserID] = &EditSession{Stage: AwaitingQuestion, FAQID: faqID}
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Debug("faq edit started", "user_id", r.UserID, "faq_id", faqID)
	m.reply(ctx, r, editPromptText(item, m.skip), nil)
	return nil
}

// ReceiveEditQuestion captures the replacement question, or keeps the
// current one when text is the skip directive. It returns false when the
// responder is not waiting to enter a question.
func (m *Manager) ReceiveEditQuestion(ctx context.Context, r Responder, text string) (bool, error) {
	m.mu.Lock()
	sess := m.edits[r.UserID]
	if sess == nil || sess.Stage != AwaitingQuestion {
		m.mu.Unlock()
		return false, nil
	}
	faqID := sess.FAQID
	m.mu.Unlock()

	item, ok, err := m.reload(ctx, r, sess, faqID)
	if !ok {
		return true, err
	}

	question := text
	if m.isSkip(text) {
		question = item.Question
	}

	m.mu.Lock()
	if m.edits[r.UserID] != sess {
		m.mu.Unlock()
		return false, nil
	}
	sess.NewQuestion = question
	sess.Stage = AwaitingAnswer
	m.mu.Unlock()

	m.send(ctx, r.ChatID, editAnswerPromptText(question, m.skip), nil)
	return true, nil
}

// ReceiveEditAnswer writes the edited item, releases its lock and confirms
// the result. The skip directive keeps the current answer. It returns false
// when the responder is not waiting to enter an answer.
func (m *Manager) ReceiveEditAnswer(ctx context.Context, r Responder, text string) (bool, error) {
	m.mu.Lock()
	sess := m.edits[r.UserID]
	if sess == nil || sess.Stage != AwaitingAnswer {
		m.mu.Unlock()
		return false, nil
	}
	faqID, question := sess.FAQID, sess.NewQuestion
	m.mu.Unlock()

	item, ok, err := m.reload(ctx, r, sess, faqID)
	if !ok {
		return true, err
	}

	answer := text
	if m.isSkip(text) {
		answer = item.Answer
	}
	if question == "" {
		question = item.Question
	}

	updated, err := m.store.Update(ctx, faqID, question, answer)
	m.endEdit(r.UserID, sess)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.send(ctx, r.ChatID, msgNotFound, nil)
		return true, nil
	case err != nil:
		m.send(ctx, r.ChatID, saveFailure(err), nil)
		return true, fmt.Errorf("update faq %d: %w", faqID, err)
	}

	m.logger.Info("faq item updated", "user_id", r.UserID, "faq_id", faqID)
	m.send(ctx, r.ChatID, updatedText(updated), nil)
	return true, nil
}

// HandleText offers free text to the four receive steps in order and
// reports whether one of them consumed it.
func (m *Manager) HandleText(ctx context.Context, r Responder, text string) (bool, error) {
	steps := []func(context.Context, Responder, string) (bool, error){
		m.ReceiveAddQuestion,
		m.ReceiveAddAnswer,
		m.ReceiveEditQuestion,
		m.ReceiveEditAnswer,
	}
	for _, step := range steps {
		if handled, err := step(ctx, r, text); handled || err != nil {
			return handled, err
		}
	}
	return false, nil
}

// DeleteItem removes faqID and shows the refreshed list. Locks and sessions
// targeting the item are left alone; their owner gets a not-found reply at
// the next step.
func (m *Manager) DeleteItem(ctx context.Context, r Responder, faqID int64) error {
	if _, err := m.store.Get(ctx, faqID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.reply(ctx, r, msgNotFound, nil)
			return nil
		}
		m.reply(ctx, r, msgLoadFailed, nil)
		return fmt.Errorf("get faq %d: %w", faqID, err)
	}
	deleted, err := m.store.Delete(ctx, faqID)
	if err != nil {
		m.reply(ctx, r, msgSaveFailed, nil)
		return fmt.Errorf("delete faq %d: %w", faqID, err)
	}
	if !deleted {
		m.reply(ctx, r, msgNotFound, nil)
		return nil
	}
	m.logger.Info("faq item deleted", "user_id", r.UserID, "faq_id", faqID)
	return m.ShowList(ctx, r)
}

// CancelAll drops both sessions of responder and releases any lock it holds.
// It reports whether there was anything to cancel.
func (m *Manager) CancelAll(responder int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, adding := m.adds[responder]
	delete(m.adds, responder)
	editing := m.dropEditLocked(responder)
	m.publishLocked()
	return adding || editing
}

// reload fetches the edit target again. When it is gone or the store fails,
// the session ends, the responder is told, and ok is false.
func (m *Manager) reload(ctx context.Context, r Responder, sess *EditSession, faqID int64) (*models.FAQItem, bool, error) {
	item, err := m.store.Get(ctx, faqID)
	if err == nil {
		return item, true, nil
	}
	m.endEdit(r.UserID, sess)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Info("faq item vanished during edit", "user_id", r.UserID, "faq_id", faqID)
		m.send(ctx, r.ChatID, msgNotFound, nil)
		return nil, false, nil
	}
	m.send(ctx, r.ChatID, msgLoadFailed, nil)
	return nil, false, fmt.Errorf("get faq %d: %w", faqID, err)
}

// endAdd removes sess if it is still the responder's add session.
func (m *Manager) endAdd(responder int64, sess *AddSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adds[responder] == sess {
		delete(m.adds, responder)
		m.publishLocked()
	}
}

// endEdit removes sess and its lock if it is still the responder's edit
// session.
func (m *Manager) endEdit(responder int64, sess *EditSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edits[responder] == sess {
		m.dropEditLocked(responder)
		m.publishLocked()
	}
}

func (m *Manager) dropEditLocked(responder int64) bool {
	sess, ok := m.edits[responder]
	if !ok {
		return false
	}
	m.locks.Release(sess.FAQID, responder)
	delete(m.edits, responder)
	return true
}

func (m *Manager) statsLocked() Stats {
	return Stats{AddSessions: len(m.adds), EditSessions: len(m.edits), Locks: m.locks.Len()}
}

func (m *Manager) publishLocked() {
	if m.gauges == nil {
		return
	}
	stats := m.statsLocked()
	m.gauges.SetFAQSessions(stats.AddSessions, stats.EditSessions)
	m.gauges.SetFAQLocks(stats.Locks)
}

// checkInvariants verifies that locks and edit sessions mirror each other
// and that no responder is both adding and editing.
func (m *Manager) checkInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for responder := range m.adds {
		if _, ok := m.edits[responder]; ok {
			return fmt.Errorf("responder %d has both an add and an edit session", responder)
		}
	}
	for responder, sess := range m.edits {
		holder, ok := m.locks.Holder(sess.FAQID)
		if !ok || holder != responder {
			return fmt.Errorf("edit session of %d targets faq %d without holding its lock", responder, sess.FAQID)
		}
	}
	for faqID, holder := range m.locks.holders {
		sess, ok := m.edits[holder]
		if !ok || sess.FAQID != faqID {
			return fmt.Errorf("faq %d is locked by %d without an edit session", faqID, holder)
		}
	}
	return nil
}

func (m *Manager) isSkip(text string) bool {
	return strings.TrimSpace(text) == m.skip
}

// reply edits the origin message when there is one and sends otherwise.
// Failures are logged and swallowed.
func (m *Manager) reply(ctx context.Context, r Responder, text string, kb channels.Markup) {
	if r.Origin.IsZero() {
		m.send(ctx, r.ChatID, text, kb)
		return
	}
	if err := m.messenger.Edit(ctx, r.Origin, text, kb); err != nil {
		m.logger.Warn("failed to edit faq message", "chat_id", r.ChatID, "error", err)
	}
}

func (m *Manager) send(ctx context.Context, chatID int64, text string, markup channels.Markup) {
	if _, err := m.messenger.Send(ctx, chatID, text, markup); err != nil {
		m.logger.Warn("failed to send faq message", "chat_id", chatID, "error", err)
	}
}

func saveFailure(err error) string {
	if errors.Is(err, storage.ErrInvalidInput) {
		return "⚠️ " + strings.TrimPrefix(err.Error(), storage.ErrInvalidInput.Error()+": ")
	}
	return msgSaveFailed
}
