package telegram

import (
	"context"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// BotClient is the subset of the Bot API the adapter uses. *bot.Bot
// implements it; tests substitute a fake.
type BotClient interface {
	// SendMessage sends a text message to a chat.
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)

	// EditMessageText replaces the text and inline keyboard of a message.
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)

	// AnswerCallbackQuery acknowledges a button press.
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)

	// GetMe returns information about the bot.
	GetMe(ctx context.Context) (*models.User, error)

	// SetWebhook configures a webhook for receiving updates.
	SetWebhook(ctx context.Context, params *bot.SetWebhookParams) (bool, error)

	// DeleteWebhook switches the bot back to getUpdates.
	DeleteWebhook(ctx context.Context, params *bot.DeleteWebhookParams) (bool, error)

	// Start polls for updates until ctx is canceled.
	Start(ctx context.Context)

	// StartWebhook processes webhook updates until ctx is canceled.
	StartWebhook(ctx context.Context)

	// WebhookHandler receives webhook POSTs from Telegram.
	WebhookHandler() http.HandlerFunc
}

var _ BotClient = (*bot.Bot)(nil)

// ClientFactory creates a BotClient that delivers updates through opts.
type ClientFactory func(token string, opts ...bot.Option) (BotClient, error)

func newBotClient(token string, opts ...bot.Option) (BotClient, error) {
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}
