package config

import "time"

// TelegramConfig configures the Telegram bot connection.
type TelegramConfig struct {
	// BotToken is the token issued by @BotFather.
	BotToken string `yaml:"bot_token"`

	// Mode is long_polling (default) or webhook.
	Mode string `yaml:"mode"`

	// WebhookURL is the public URL Telegram posts updates to in webhook mode.
	WebhookURL string `yaml:"webhook_url"`

	// WebhookListen is the local address of the webhook receiver.
	WebhookListen string `yaml:"webhook_listen"`

	// RateLimit is the sustained number of outbound API calls per second.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the token bucket capacity for outbound calls.
	RateBurst int `yaml:"rate_burst"`

	// MaxReconnectAttempts bounds polling restarts after failures.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// ReconnectDelay is the initial backoff between reconnect attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// SkipDirective keeps the current value during an FAQ edit step.
	SkipDirective string `yaml:"skip_directive"`
}
