// Package questions routes free-form guest questions to the designated
// answerer and relays the answers back.
package questions

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/concierge/internal/channels"
	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

// CallbackAnswerPrefix starts the data of the answer button attached to a
// forwarded question: answer_<question id>_<guest id>.
const CallbackAnswerPrefix = "answer_"

const (
	msgAskPrompt       = "Please write your question:"
	msgQuestionSent    = "Thank you! Your question has been sent. We will answer as soon as we can."
	msgQuestionFailed  = "⚠️ Could not save your question. Please try again."
	msgOnlyAnswerer    = "⛔ Only the hosts can answer questions."
	msgQuestionMissing = "❌ Error: question not found."
	msgAnswerSent      = "✅ Answer sent to the guest!"
	msgAnswerFailed    = "⚠️ Could not save the answer. Please try again."
)

// Config configures a Service.
type Config struct {
	Store     storage.QuestionStore
	Messenger channels.Messenger

	// AnswererID receives every question. Zero leaves questions stored but
	// not forwarded.
	AnswererID int64

	// GuestMarkup is attached to the confirmation a guest gets.
	GuestMarkup channels.Markup

	Logger *slog.Logger
	Now    func() time.Time
}

type pendingAnswer struct {
	questionID int64
	guestID    int64
}

// Service holds the per-user "waiting for text" state of both sides of the
// conversation.
type Service struct {
	store       storage.QuestionStore
	messenger   channels.Messenger
	guestMarkup channels.Markup
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	answerer int64
	asking   map[int64]string
	answers  map[int64]pendingAnswer
}

// NewService creates a question service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("questions: store is required")
	}
	if cfg.Messenger == nil {
		return nil, errors.New("questions: messenger is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:       cfg.Store,
		messenger:   cfg.Messenger,
		guestMarkup: cfg.GuestMarkup,
		logger:      cfg.Logger.With("component", "questions"),
		now:         cfg.Now,
		answerer:    cfg.AnswererID,
		asking:      make(map[int64]string),
		answers:     make(map[int64]pendingAnswer),
	}, nil
}

// SetAnswerer changes who receives new questions.
func (s *Service) SetAnswerer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answerer = id
}

// IsAnswerer reports whether userID currently answers questions.
func (s *Service) IsAnswerer(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerer != 0 && s.answerer == userID
}

// BeginAsk puts the user into question mode and prompts for the text.
func (s *Service) BeginAsk(ctx context.Context, from channels.Sender, chatID int64) {
	s.mu.Lock()
	s.asking[from.ID] = from.Username
	s.mu.Unlock()
	s.send(ctx, chatID, msgAskPrompt, nil)
}

// Asking reports whether the user's next text is a question.
func (s *Service) Asking(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.asking[userID]
	return ok
}

// ReceiveQuestion stores the text as a question and forwards it to the
// answerer. It declines when the user is not in question mode.
func (s *Service) ReceiveQuestion(ctx context.Context, from channels.Sender, chatID int64, text string) (bool, error) {
	s.mu.Lock()
	username, ok := s.asking[from.ID]
	if ok {
		delete(s.asking, from.ID)
	}
	answerer := s.answerer
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	question := &models.Question{
		FromUserID:   from.ID,
		FromUsername: username,
		Text:         text,
	}
	if err := s.store.Create(ctx, question); err != nil {
		s.send(ctx, chatID, msgQuestionFailed, s.guestMarkup)
		return true, fmt.Errorf("store question: %w", err)
	}
	s.logger.Info("question received", "question_id", question.ID, "user_id", from.ID)

	if answerer == 0 {
		s.logger.Warn("no answerer configured, question not forwarded", "question_id", question.ID)
	} else {
		s.send(ctx, answerer, forwardText(question), AnswerKeyboard(question.ID, from.ID))
	}
	s.send(ctx, chatID, msgQuestionSent, s.guestMarkup)
	return true, nil
}

// BeginAnswer handles a press of the answer button. The button message is
// replaced with the full question and a prompt for the answer.
func (s *Service) BeginAnswer(ctx context.Context, userID int64, ref channels.MessageRef, data string) error {
	if !s.IsAnswerer(userID) {
		s.reply(ctx, ref, msgOnlyAnswerer)
		return nil
	}
	questionID, guestID, err := ParseAnswerCallback(data)
	if err != nil {
		return err
	}

	question, err := s.store.Get(ctx, questionID)
	if errors.Is(err, storage.ErrNotFound) {
		s.reply(ctx, ref, msgQuestionMissing)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load question %d: %w", questionID, err)
	}

	s.mu.Lock()
	s.answers[userID] = pendingAnswer{questionID: questionID, guestID: guestID}
	s.mu.Unlock()

	s.reply(ctx, ref, fmt.Sprintf("💬 <b>Question #%d</b>\n\n%s\n\nPlease write your answer:",
		question.ID, html.EscapeString(question.Text)))
	return nil
}

// Answering reports whether the user's next text is an answer.
func (s *Service) Answering(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[userID]
	return ok
}

// ReceiveAnswer stores the answer and relays it to the guest. It declines
// when the user has not pressed an answer button.
func (s *Service) ReceiveAnswer(ctx context.Context, userID, chatID int64, text string) (bool, error) {
	s.mu.Lock()
	pending, ok := s.answers[userID]
	if ok {
		delete(s.answers, userID)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	question, err := s.store.Answer(ctx, pending.questionID, text, userID, s.now().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		s.send(ctx, chatID, msgQuestionMissing, nil)
		return true, nil
	}
	if err != nil {
		s.send(ctx, chatID, msgAnswerFailed, nil)
		return true, fmt.Errorf("store answer for question %d: %w", pending.questionID, err)
	}

	relay := fmt.Sprintf("An answer to your question has arrived\n\n❓ Question:\n%s\n\n💬 Answer:\n%s",
		html.EscapeString(question.Text), html.EscapeString(text))
	if _, err := s.messenger.Send(ctx, pending.guestID, relay, nil); err != nil {
		s.logger.Warn("failed to relay answer", "question_id", question.ID, "guest_id", pending.guestID, "error", err)
		s.send(ctx, chatID, "❌ Could not deliver the answer: "+html.EscapeString(err.Error()), nil)
		return true, nil
	}
	s.send(ctx, chatID, msgAnswerSent, nil)
	return true, nil
}

// Cancel forgets any pending question or answer of userID.
func (s *Service) Cancel(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, asking := s.asking[userID]
	_, answering := s.answers[userID]
	delete(s.asking, userID)
	delete(s.answers, userID)
	return asking || answering
}

// Pending lists unanswered questions, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*models.Question, error) {
	questions, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending questions: %w", err)
	}
	return questions, nil
}

// AnswerKeyboard is the inline keyboard attached to a forwarded question.
func AnswerKeyboard(questionID, guestID int64) channels.Keyboard {
	return channels.Keyboard{}.Row(channels.Button{
		Text: "Answer",
		Data: fmt.Sprintf("%s%d_%d", CallbackAnswerPrefix, questionID, guestID),
	})
}

// ParseAnswerCallback splits answer_<question id>_<guest id>.
func ParseAnswerCallback(data string) (questionID, guestID int64, err error) {
	raw, ok := strings.CutPrefix(data, CallbackAnswerPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("callback %q is not an answer button", data)
	}
	qid, uid, ok := strings.Cut(raw, "_")
	if !ok {
		return 0, 0, fmt.Errorf("callback %q has no guest id", data)
	}
	questionID, err = strconv.ParseInt(qid, 10, 64)
	if err != nil || questionID <= 0 {
		return 0, 0, fmt.Errorf("callback %q has no valid question id", data)
	}
	guestID, err = strconv.ParseInt(uid, 10, 64)
	if err != nil || guestID == 0 {
		return 0, 0, fmt.Errorf("callback %q has no valid guest id", data)
	}
	return questionID, guestID, nil
}

func forwardText(q *models.Question) string {
	from := "a guest"
	if q.FromUsername != "" {
		from = "@" + q.FromUsername
	}
	return fmt.Sprintf("Question from %s\n\n%s", html.EscapeString(from), html.EscapeString(q.Text))
}

func (s *Service) reply(ctx context.Context, ref channels.MessageRef, text string) {
	if err := s.messenger.Edit(ctx, ref, text, nil); err != nil {
		s.logger.Warn("failed to edit message", "chat_id", ref.ChatID, "error", err)
	}
}

func (s *Service) send(ctx context.Context, chatID int64, text string, markup channels.Markup) {
	if _, err := s.messenger.Send(ctx, chatID, text, markup); err != nil {
		s.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
