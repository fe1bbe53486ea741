package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/haasonsaas/concierge/internal/channels"
)

// Mode selects how updates reach the bot.
type Mode string

const (
	ModeLongPolling Mode = "long_polling"
	ModeWebhook     Mode = "webhook"
)

// Config configures an Adapter. Zero values are replaced by Validate.
type Config struct {
	Token string
	Mode  Mode

	// WebhookURL is the public HTTPS URL registered with setWebhook.
	// Required in webhook mode.
	WebhookURL string

	// ListenAddr starts a dedicated webhook server, e.g. ":8443". When empty
	// the caller mounts WebhookHandler on its own server.
	ListenAddr string

	// Consecutive update loop failures tolerated before the adapter gives
	// up, and the pause between them.
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// RateLimit and RateBurst pace all outbound calls.
	RateLimit float64
	RateBurst int

	// ChatRateLimit caps calls per second into a single chat.
	ChatRateLimit float64

	// Logger is an optional slog.Logger instance
	Logger *slog.Logger

	// NewClient overrides how the Bot API client is created.
	NewClient ClientFactory
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return channels.ErrConfig("token is required", nil)
	}

	if c.Mode == "" {
		c.Mode = ModeLongPolling
	}
	if c.Mode != ModeLongPolling && c.Mode != ModeWebhook {
		return channels.ErrConfig(fmt.Sprintf("unknown mode %q", c.Mode), nil)
	}

	if c.Mode == ModeWebhook && c.WebhookURL == "" {
		return channels.ErrConfig("webhook_url is required for webhook mode", nil)
	}

	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}

	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}

	if c.RateLimit == 0 {
		c.RateLimit = 30 // Telegram's limit is ~30 messages per second
	}

	if c.RateBurst == 0 {
		c.RateBurst = 20
	}

	if c.ChatRateLimit == 0 {
		c.ChatRateLimit = 1
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	if c.NewClient == nil {
		c.NewClient = newBotClient
	}

	return nil
}

// Adapter connects the bot to Telegram. It turns updates into
// channels.Event values and implements channels.Messenger with HTML parse
// mode, rate limiting and chunking of long texts.
type Adapter struct {
	config      Config
	client      BotClient
	handler     channels.Handler
	status      channels.Status
	statusMu    sync.RWMutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	server      *http.Server
	rateLimiter *channels.RateLimiter
	chunker     *channels.MessageChunker
	metrics     *channels.Metrics
	logger      *slog.Logger
	degraded    bool
	degradedMu  sync.RWMutex
}

var _ channels.Adapter = (*Adapter)(nil)

// NewAdapter validates config and builds a stopped adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Adapter{
		config:      config,
		status:      channels.Status{Connected: false},
		rateLimiter: channels.NewRateLimiter(config.RateLimit, config.RateBurst, config.ChatRateLimit),
		chunker:     channels.NewMessageChunker(channels.MaxMessageLength),
		metrics:     channels.NewMetrics("telegram"),
		logger:      config.Logger.With("adapter", "telegram"),
	}, nil
}

// Start connects to Telegram and delivers every update to handler until
// Stop is called or ctx is canceled.
func (a *Adapter) Start(ctx context.Context, handler channels.Handler) error {
	if handler == nil {
		return channels.ErrConfig("handler is required", nil)
	}
	a.handler = handler

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.logger.Info("starting telegram adapter",
		"mode", a.config.Mode,
		"rate_limit", a.config.RateLimit)

	client, err := a.config.NewClient(a.config.Token,
		bot.WithDefaultHandler(a.onUpdate),
		bot.WithErrorsHandler(func(err error) {
			a.logger.Warn("telegram polling error", "error", err)
			a.metrics.RecordError(classify(err, "poll").Code)
		}),
	)
	if err != nil {
		cancel()
		a.updateStatus(false, fmt.Sprintf("failed to create bot: %v", err))
		a.metrics.RecordError(channels.ErrCodeAuthentication)
		return channels.ErrAuthentication("failed to create bot", err)
	}

	a.client = client
	a.metrics.RecordConnectionOpened()

	a.wg.Add(1)
	go a.runWithReconnection(ctx)

	a.logger.Info("telegram adapter started successfully")
	return nil
}

// Open creates the API client without receiving updates, for send-only use
// such as a one-off broadcast from the CLI. Start must not be called after
// Open.
func (a *Adapter) Open() error {
	if a.client != nil {
		return nil
	}
	client, err := a.config.NewClient(a.config.Token)
	if err != nil {
		a.metrics.RecordError(channels.ErrCodeAuthentication)
		return channels.ErrAuthentication("failed to create bot", err)
	}
	a.client = client
	return nil
}

// runWithReconnection handles the main update loop with automatic reconnection.
func (a *Adapter) runWithReconnection(ctx context.Context) {
	defer a.wg.Done()

	attempts := 0
	maxAttempts := a.config.MaxReconnectAttempts

	for {
		if ctx.Err() != nil {
			a.updateStatus(false, "")
			a.logger.Info("telegram adapter stopped")
			return
		}

		err := a.run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			a.setDegraded(false)
			a.updateStatus(false, "")
			return
		}

		attempts++
		a.metrics.RecordReconnectAttempt()
		a.updateStatus(false, fmt.Sprintf("bot error (attempt %d/%d)", attempts, maxAttempts))
		a.logger.Error("telegram bot error",
			"error", err,
			"attempt", attempts,
			"max_attempts", maxAttempts)

		if attempts >= maxAttempts {
			a.logger.Error("max reconnection attempts reached, stopping adapter")
			a.metrics.RecordError(channels.ErrCodeConnection)
			return
		}

		a.setDegraded(true)

		select {
		case <-ctx.Done():
			a.updateStatus(false, "")
			return
		case <-time.After(a.config.ReconnectDelay):
			a.logger.Info("attempting to reconnect")
		}
	}
}

// run blocks in the configured receive mode until ctx is canceled.
func (a *Adapter) run(ctx context.Context) error {
	if a.config.Mode == ModeWebhook {
		return a.runWebhook(ctx)
	}
	return a.runLongPolling(ctx)
}

func (a *Adapter) runLongPolling(ctx context.Context) error {
	a.logger.Info("starting long polling mode")

	// getUpdates is refused while a webhook is registered.
	if _, err := a.client.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		return classify(err, "failed to delete webhook")
	}

	a.updateStatus(true, "")
	a.setDegraded(false)
	a.client.Start(ctx)
	return ctx.Err()
}

func (a *Adapter) runWebhook(ctx context.Context) error {
	a.logger.Info("starting webhook mode", "url", a.config.WebhookURL)

	if _, err := a.client.SetWebhook(ctx, &bot.SetWebhookParams{URL: a.config.WebhookURL}); err != nil {
		a.metrics.RecordError(channels.ErrCodeConnection)
		return channels.ErrConnection("failed to set webhook", err)
	}

	if a.config.ListenAddr != "" && a.server == nil {
		a.server = &http.Server{
			Addr:              a.config.ListenAddr,
			Handler:           a.client.WebhookHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("webhook server failed", "error", err)
			}
		}()
	}

	a.updateStatus(true, "")
	a.setDegraded(false)
	a.client.StartWebhook(ctx)
	<-ctx.Done()
	return ctx.Err()
}

// WebhookHandler returns the HTTP handler Telegram posts updates to. It is
// nil before Start.
func (a *Adapter) WebhookHandler() http.Handler {
	if a.client == nil {
		return nil
	}
	return a.client.WebhookHandler()
}

// onUpdate is registered as the bot's default handler.
func (a *Adapter) onUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	startTime := time.Now()

	event := convertUpdate(update)
	if event == nil {
		return
	}

	a.logger.Debug("received update",
		"kind", event.Kind,
		"chat_id", event.ChatID,
		"user_id", event.From.ID)

	if event.Kind == channels.EventCallback {
		a.metrics.RecordCallbackReceived()
	} else {
		a.metrics.RecordMessageReceived()
	}
	a.updateLastPing()

	if a.handler != nil {
		a.handler.HandleEvent(ctx, event)
	}
	a.metrics.RecordReceiveLatency(time.Since(startTime))
}

// Stop cancels the update loop, closes a dedicated webhook server and waits
// for the loop to exit until ctx ends.
func (a *Adapter) Stop(ctx context.Context) error {
	a.logger.Info("stopping telegram adapter")

	if a.cancel != nil {
		a.cancel()
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("webhook server shutdown failed", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.metrics.RecordConnectionClosed()
		a.logger.Info("telegram adapter stopped gracefully")
		return nil
	case <-ctx.Done():
		a.metrics.RecordError(channels.ErrCodeTimeout)
		return channels.ErrTimeout("stop timeout", ctx.Err())
	}
}

// Send delivers text to chatID. Texts longer than one Telegram message are
// split and the markup is attached to the last piece, whose reference is
// returned.
func (a *Adapter) Send(ctx context.Context, chatID int64, text string, markup channels.Markup) (channels.MessageRef, error) {
	if a.client == nil {
		a.metrics.RecordError(channels.ErrCodeInternal)
		return channels.MessageRef{}, channels.ErrInternal("bot not initialized", nil)
	}

	replyMarkup, err := renderMarkup(markup)
	if err != nil {
		a.metrics.RecordError(channels.ErrCodeInvalidInput)
		return channels.MessageRef{}, err
	}

	chunks := a.chunker.Chunk(text)
	if len(chunks) == 0 {
		return channels.MessageRef{}, channels.ErrInvalidInput("message text is empty", nil)
	}

	var ref channels.MessageRef
	for i, chunk := range chunks {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      chunk,
			ParseMode: models.ParseModeHTML,
		}
		if i == len(chunks)-1 {
			params.ReplyMarkup = replyMarkup
		}
		ref, err = a.sendOne(ctx, params)
		if err != nil {
			return channels.MessageRef{}, err
		}
	}
	return ref, nil
}

func (a *Adapter) sendOne(ctx context.Context, params *bot.SendMessageParams) (channels.MessageRef, error) {
	startTime := time.Now()

	if err := a.rateLimiter.Wait(ctx, chatIDOf(params.ChatID)); err != nil {
		a.metrics.RecordError(channels.ErrCodeTimeout)
		return channels.MessageRef{}, channels.ErrTimeout("rate limit wait cancelled", err)
	}

	sent, err := a.client.SendMessage(ctx, params)
	if err != nil {
		chErr := classify(err, "failed to send message").WithContext("chat_id", params.ChatID)
		a.metrics.RecordMessageFailed()
		a.metrics.RecordError(chErr.Code)
		a.logger.Warn("failed to send message", "error", err, "chat_id", params.ChatID)
		return channels.MessageRef{}, chErr
	}

	a.metrics.RecordMessageSent()
	a.metrics.RecordSendLatency(time.Since(startTime))
	a.logger.Debug("message sent",
		"chat_id", sent.Chat.ID,
		"message_id", sent.ID,
		"latency_ms", time.Since(startTime).Milliseconds())

	return channels.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.ID}, nil
}

// Edit replaces the text and inline keyboard of ref. Only inline keyboards
// can be attached to edited messages.
func (a *Adapter) Edit(ctx context.Context, ref channels.MessageRef, text string, markup channels.Markup) error {
	if a.client == nil {
		return channels.ErrInternal("bot not initialized", nil)
	}
	if ref.IsZero() {
		return channels.ErrInvalidInput("message reference is empty", nil)
	}
	params := &bot.EditMessageTextParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	switch kb := markup.(type) {
	case nil:
	case channels.Keyboard:
		params.ReplyMarkup = renderInlineKeyboard(kb)
	default:
		return channels.ErrInvalidInput(fmt.Sprintf("cannot attach %T to an edited message", markup), nil)
	}

	if err := a.rateLimiter.Wait(ctx, ref.ChatID); err != nil {
		return channels.ErrTimeout("rate limit wait cancelled", err)
	}
	if _, err := a.client.EditMessageText(ctx, params); err != nil {
		// Pressing the same button twice re-renders identical content.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		chErr := classify(err, "failed to edit message").WithContext("chat_id", ref.ChatID)
		a.metrics.RecordError(chErr.Code)
		return chErr
	}
	a.metrics.RecordMessageEdited()
	return nil
}

// AckCallback answers a callback query, optionally with a toast text.
func (a *Adapter) AckCallback(ctx context.Context, callbackID, text string) error {
	if a.client == nil {
		return channels.ErrInternal("bot not initialized", nil)
	}
	if callbackID == "" {
		return nil
	}
	_, err := a.client.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		chErr := classify(err, "failed to answer callback")
		a.metrics.RecordError(chErr.Code)
		return chErr
	}
	return nil
}

// Status returns the current connection status.
func (a *Adapter) Status() channels.Status {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// HealthCheck calls getMe and reports its latency.
func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	startTime := time.Now()

	health := channels.HealthStatus{
		LastCheck: startTime,
		Healthy:   false,
	}

	if a.client == nil {
		health.Message = "bot not initialized"
		health.Latency = time.Since(startTime)
		return health
	}

	_, err := a.client.GetMe(ctx)
	health.Latency = time.Since(startTime)

	if err != nil {
		health.Message = fmt.Sprintf("health check failed: %v", err)
		a.logger.Warn("health check failed", "error", err, "latency_ms", health.Latency.Milliseconds())
		return health
	}

	health.Healthy = true
	health.Degraded = a.isDegraded()

	if health.Degraded {
		health.Message = "operating in degraded mode"
	} else {
		health.Message = "healthy"
	}

	return health
}

// Metrics returns the current metrics snapshot.
func (a *Adapter) Metrics() channels.MetricsSnapshot {
	return a.metrics.Snapshot()
}

func (a *Adapter) updateStatus(connected bool, errMsg string) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.Connected = connected
	a.status.Error = errMsg
}

func (a *Adapter) updateLastPing() {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.LastPing = time.Now().Unix()
}

func (a *Adapter) setDegraded(degraded bool) {
	a.degradedMu.Lock()
	defer a.degradedMu.Unlock()
	a.degraded = degraded
}

func (a *Adapter) isDegraded() bool {
	a.degradedMu.RLock()
	defer a.degradedMu.RUnlock()
	return a.degraded
}

// classify maps Bot API errors onto channel error codes.
func classify(err error, message string) *channels.Error {
	switch {
	case bot.IsTooManyRequestsError(err):
		return channels.ErrRateLimit(message, err)
	case errors.Is(err, bot.ErrorForbidden):
		return channels.ErrForbidden(message, err)
	case errors.Is(err, bot.ErrorUnauthorized):
		return channels.ErrAuthentication(message, err)
	case errors.Is(err, bot.ErrorBadRequest):
		return channels.ErrInvalidInput(message, err)
	case errors.Is(err, context.DeadlineExceeded):
		return channels.ErrTimeout(message, err)
	default:
		return channels.ErrConnection(message, err)
	}
}

// chatIDOf returns the numeric chat id, or 0 for @channel usernames.
func chatIDOf(id any) int64 {
	if n, ok := id.(int64); ok {
		return n
	}
	return 0
}
