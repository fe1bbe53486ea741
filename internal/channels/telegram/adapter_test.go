package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/concierge/internal/channels"
)

// fakeClient records Bot API calls and blocks in Start until canceled.
type fakeClient struct {
	mu      sync.Mutex
	sent    []*bot.SendMessageParams
	edited  []*bot.EditMessageTextParams
	acked   []*bot.AnswerCallbackQueryParams
	nextID  int
	sendErr error
	editErr error
	getMe   error
	started chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{started: make(chan struct{}, 1)}
}

func (f *fakeClient) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, p)
	f.nextID++
	return &models.Message{ID: f.nextID, Chat: models.Chat{ID: p.ChatID.(int64)}}, nil
}

func (f *fakeClient) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, p)
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeClient) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, p)
	return true, nil
}

func (f *fakeClient) GetMe(context.Context) (*models.User, error) {
	if f.getMe != nil {
		return nil, f.getMe
	}
	return &models.User{ID: 1, IsBot: true, Username: "concierge_bot"}, nil
}

func (f *fakeClient) SetWebhook(context.Context, *bot.SetWebhookParams) (bool, error) {
	return true, nil
}

func (f *fakeClient) DeleteWebhook(context.Context, *bot.DeleteWebhookParams) (bool, error) {
	return true, nil
}

func (f *fakeClient) Start(ctx context.Context) {
	f.started <- struct{}{}
	<-ctx.Done()
}

func (f *fakeClient) StartWebhook(ctx context.Context) {
	f.started <- struct{}{}
	<-ctx.Done()
}

func (f *fakeClient) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
}

func newTestAdapter(t *testing.T, client *fakeClient) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(Config{
		Token:     "test-token",
		Mode:      ModeLongPolling,
		RateLimit:     1000,
		RateBurst:     100,
		ChatRateLimit: 1000,
		NewClient: func(string, ...bot.Option) (BotClient, error) { return client, nil },
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return adapter
}

func startAdapter(t *testing.T, adapter *Adapter, client *fakeClient, handler channels.Handler) {
	t.Helper()
	if err := adapter.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not started")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = adapter.Stop(ctx)
	})
}

var noopHandler = channels.HandlerFunc(func(context.Context, *channels.Event) {})

func TestAdapter_Status(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)

	if adapter.Status().Connected {
		t.Error("Status().Connected = true before Start")
	}

	startAdapter(t, adapter, client, noopHandler)

	if !adapter.Status().Connected {
		t.Error("Status().Connected = false after Start")
	}
}

func TestAdapter_Lifecycle(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)

	if err := adapter.Start(context.Background(), noopHandler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	<-client.started

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := adapter.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if adapter.Status().Connected {
		t.Error("Status().Connected = true after Stop")
	}
}

func TestAdapter_StartRequiresHandler(t *testing.T) {
	adapter := newTestAdapter(t, newFakeClient())
	if err := adapter.Start(context.Background(), nil); err == nil {
		t.Fatal("Start(nil) error = nil")
	}
}

func TestAdapter_OnUpdateDeliversEvents(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)

	var (
		mu     sync.Mutex
		events []*channels.Event
	)
	startAdapter(t, adapter, client, channels.HandlerFunc(func(_ context.Context, e *channels.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	adapter.onUpdate(context.Background(), nil, &models.Update{
		Message: &models.Message{
			ID:   7,
			From: &models.User{ID: 42, FirstName: "Anna"},
			Chat: models.Chat{ID: 42},
			Text: "/start",
			Date: 1700000000,
		},
	})
	adapter.onUpdate(context.Background(), nil, &models.Update{
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: 42},
			Data: "faq_list",
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 9, Chat: models.Chat{ID: 42}},
			},
		},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("delivered %d events, want 2", len(events))
	}
	if events[0].Command() != "start" {
		t.Errorf("first event command = %q, want start", events[0].Command())
	}
	if events[1].Kind != channels.EventCallback || events[1].Ref() != (channels.MessageRef{ChatID: 42, MessageID: 9}) {
		t.Errorf("callback event = %+v", events[1])
	}

	snap := adapter.Metrics()
	if snap.MessagesReceived != 1 || snap.CallbacksReceived != 1 {
		t.Errorf("metrics received=%d callbacks=%d, want 1/1", snap.MessagesReceived, snap.CallbacksReceived)
	}
}

func TestConvertUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update *models.Update
		want   *channels.Event
	}{
		{
			name:   "nil update",
			update: nil,
		},
		{
			name: "sticker without text",
			update: &models.Update{Message: &models.Message{
				ID: 1, From: &models.User{ID: 5}, Chat: models.Chat{ID: 5},
			}},
		},
		{
			name: "text message",
			update: &models.Update{Message: &models.Message{
				ID:   3,
				From: &models.User{ID: 5, Username: "anna", FirstName: "Anna", LastName: "K"},
				Chat: models.Chat{ID: 5},
				Text: "hello",
				Date: 1700000000,
			}},
			want: &channels.Event{
				Kind:       channels.EventMessage,
				From:       channels.Sender{ID: 5, Username: "anna", FirstName: "Anna", LastName: "K"},
				ChatID:     5,
				MessageID:  3,
				Text:       "hello",
				ReceivedAt: time.Unix(1700000000, 0),
			},
		},
		{
			name: "callback on inaccessible message",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				ID:   "cb",
				From: models.User{ID: 5},
				Data: "faq_add",
				Message: models.MaybeInaccessibleMessage{
					InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: 5}, MessageID: 11},
				},
			}},
			want: &channels.Event{
				Kind:       channels.EventCallback,
				From:       channels.Sender{ID: 5},
				ChatID:     5,
				MessageID:  11,
				CallbackID: "cb",
				Data:       "faq_add",
			},
		},
		{
			name: "inline callback falls back to private chat",
			update: &models.Update{CallbackQuery: &models.CallbackQuery{
				ID: "cb", From: models.User{ID: 8}, Data: "x",
			}},
			want: &channels.Event{
				Kind:       channels.EventCallback,
				From:       channels.Sender{ID: 8},
				ChatID:     8,
				CallbackID: "cb",
				Data:       "x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertUpdate(tt.update)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("convertUpdate() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("convertUpdate() = nil")
			}
			if tt.want.Kind == channels.EventCallback {
				// Callback events are stamped with the receive time.
				got.ReceivedAt = time.Time{}
			}
			if got.Kind != tt.want.Kind || got.From != tt.want.From || got.ChatID != tt.want.ChatID ||
				got.MessageID != tt.want.MessageID || got.Text != tt.want.Text ||
				got.CallbackID != tt.want.CallbackID || got.Data != tt.want.Data ||
				!got.ReceivedAt.Equal(tt.want.ReceivedAt) {
				t.Errorf("convertUpdate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderMarkup(t *testing.T) {
	inline, err := renderMarkup(channels.Keyboard{}.
		Row(channels.Button{Text: "List", Data: "faq_list"}, channels.Button{Text: "Site", URL: "https://example.com"}))
	if err != nil {
		t.Fatalf("renderMarkup(Keyboard) error = %v", err)
	}
	kb, ok := inline.(*models.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("renderMarkup(Keyboard) = %T", inline)
	}
	if got := kb.InlineKeyboard[0][1]; got.URL != "https://example.com" || got.CallbackData != "" {
		t.Errorf("url button = %+v", got)
	}

	reply, err := renderMarkup(channels.ReplyKeyboard{Rows: [][]string{{"Ask", "FAQ"}}, Resize: true})
	if err != nil {
		t.Fatalf("renderMarkup(ReplyKeyboard) error = %v", err)
	}
	rk, ok := reply.(*models.ReplyKeyboardMarkup)
	if !ok || !rk.ResizeKeyboard || rk.Keyboard[0][1].Text != "FAQ" {
		t.Errorf("renderMarkup(ReplyKeyboard) = %+v", reply)
	}

	removed, err := renderMarkup(channels.RemoveKeyboard{})
	if err != nil {
		t.Fatalf("renderMarkup(RemoveKeyboard) error = %v", err)
	}
	if rm, ok := removed.(*models.ReplyKeyboardRemove); !ok || !rm.RemoveKeyboard {
		t.Errorf("renderMarkup(RemoveKeyboard) = %+v", removed)
	}

	if none, err := renderMarkup(nil); err != nil || none != nil {
		t.Errorf("renderMarkup(nil) = %v, %v", none, err)
	}
}

func TestAdapter_SendChunksLongText(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)
	startAdapter(t, adapter, client, noopHandler)

	text := strings.Repeat("Lorem ipsum dolor sit amet. ", 300)
	ref, err := adapter.Send(context.Background(), 42, text, channels.Keyboard{}.Row(channels.Button{Text: "OK", Data: "ok"}))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.sent) < 2 {
		t.Fatalf("sent %d messages, want at least 2", len(client.sent))
	}
	for i, p := range client.sent {
		if p.ParseMode != models.ParseModeHTML {
			t.Errorf("chunk %d parse mode = %q", i, p.ParseMode)
		}
		last := i == len(client.sent)-1
		if (p.ReplyMarkup != nil) != last {
			t.Errorf("chunk %d has markup = %v, want %v", i, p.ReplyMarkup != nil, last)
		}
	}
	if ref != (channels.MessageRef{ChatID: 42, MessageID: len(client.sent)}) {
		t.Errorf("Send() ref = %+v, want the last chunk", ref)
	}
}

func TestAdapter_SendBeforeStart(t *testing.T) {
	adapter := newTestAdapter(t, newFakeClient())
	_, err := adapter.Send(context.Background(), 1, "hi", nil)
	if channels.GetErrorCode(err) != channels.ErrCodeInternal {
		t.Errorf("Send() before Start error = %v, want internal", err)
	}
}

func TestAdapter_OpenSendsWithoutReceiving(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)
	if err := adapter.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := adapter.Send(context.Background(), 7, "countdown", nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(client.sent))
	}
	select {
	case <-client.started:
		t.Error("Open() started receiving updates")
	default:
	}
}

func TestAdapter_SendClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want channels.ErrorCode
	}{
		{"blocked by user", fmt.Errorf("%w, bot was blocked by the user", bot.ErrorForbidden), channels.ErrCodeForbidden},
		{"revoked token", fmt.Errorf("%w, invalid token", bot.ErrorUnauthorized), channels.ErrCodeAuthentication},
		{"bad html", fmt.Errorf("%w, can't parse entities", bot.ErrorBadRequest), channels.ErrCodeInvalidInput},
		{"network", errors.New("connection reset by peer"), channels.ErrCodeConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			adapter := newTestAdapter(t, client)
			startAdapter(t, adapter, client, noopHandler)
			client.mu.Lock()
			client.sendErr = tt.err
			client.mu.Unlock()

			_, err := adapter.Send(context.Background(), 1, "hi", nil)
			if got := channels.GetErrorCode(err); got != tt.want {
				t.Errorf("error code = %v, want %v", got, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error %v does not wrap %v", err, tt.err)
			}
		})
	}
}

func TestAdapter_Edit(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)
	startAdapter(t, adapter, client, noopHandler)
	ref := channels.MessageRef{ChatID: 42, MessageID: 5}
	ctx := context.Background()

	if err := adapter.Edit(ctx, ref, "<b>menu</b>", channels.Keyboard{}.Row(channels.Button{Text: "A", Data: "a"})); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if err := adapter.Edit(ctx, ref, "menu", channels.ReplyKeyboard{}); channels.GetErrorCode(err) != channels.ErrCodeInvalidInput {
		t.Errorf("Edit(ReplyKeyboard) error = %v, want invalid input", err)
	}
	if err := adapter.Edit(ctx, channels.MessageRef{}, "menu", nil); channels.GetErrorCode(err) != channels.ErrCodeInvalidInput {
		t.Errorf("Edit(zero ref) error = %v, want invalid input", err)
	}

	client.mu.Lock()
	client.editErr = fmt.Errorf("%w, message is not modified: specified new message content is the same", bot.ErrorBadRequest)
	client.mu.Unlock()
	if err := adapter.Edit(ctx, ref, "menu", nil); err != nil {
		t.Errorf("Edit() of unchanged message error = %v, want nil", err)
	}

	if got := adapter.Metrics().MessagesEdited; got != 1 {
		t.Errorf("MessagesEdited = %d, want 1", got)
	}
}

func TestAdapter_AckCallback(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)
	startAdapter(t, adapter, client, noopHandler)

	if err := adapter.AckCallback(context.Background(), "", "ignored"); err != nil {
		t.Fatalf("AckCallback(empty) error = %v", err)
	}
	if err := adapter.AckCallback(context.Background(), "cb-1", "Saved"); err != nil {
		t.Fatalf("AckCallback() error = %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.acked) != 1 || client.acked[0].CallbackQueryID != "cb-1" || client.acked[0].Text != "Saved" {
		t.Errorf("acked = %+v", client.acked)
	}
}

func TestAdapter_HealthCheck(t *testing.T) {
	client := newFakeClient()
	adapter := newTestAdapter(t, client)

	if adapter.HealthCheck(context.Background()).Healthy {
		t.Error("HealthCheck() healthy before Start")
	}

	startAdapter(t, adapter, client, noopHandler)
	if h := adapter.HealthCheck(context.Background()); !h.Healthy || h.Message != "healthy" {
		t.Errorf("HealthCheck() = %+v", h)
	}

	client.getMe = bot.ErrorUnauthorized
	if adapter.HealthCheck(context.Background()).Healthy {
		t.Error("HealthCheck() healthy with failing getMe")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid long polling config",
			cfg: Config{
				Token: "valid-token",
				Mode:  ModeLongPolling,
			},
			wantErr: false,
		},
		{
			name: "valid webhook config",
			cfg: Config{
				Token:      "valid-token",
				Mode:       ModeWebhook,
				WebhookURL: "https://example.com/webhook",
			},
			wantErr: false,
		},
		{
			name: "missing token",
			cfg: Config{
				Mode: ModeLongPolling,
			},
			wantErr: true,
		},
		{
			name: "webhook without URL",
			cfg: Config{
				Token: "valid-token",
				Mode:  ModeWebhook,
			},
			wantErr: true,
		},
		{
			name: "unknown mode",
			cfg: Config{
				Token: "valid-token",
				Mode:  "carrier_pigeon",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := Config{Token: "t"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Mode != ModeLongPolling || cfg.MaxReconnectAttempts != 5 || cfg.ReconnectDelay != 5*time.Second ||
		cfg.RateLimit != 30 || cfg.RateBurst != 20 || cfg.ChatRateLimit != 1 || cfg.Logger == nil || cfg.NewClient == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
