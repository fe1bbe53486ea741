package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/concierge/internal/storage"
)

// Config is the main configuration structure for the concierge bot.
type Config struct {
	Version   int             `yaml:"version"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Event     EventConfig     `yaml:"event"`
	Access    AccessConfig    `yaml:"access"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Reminders RemindersConfig `yaml:"reminders"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// Environment variables that override secrets from the file.
const (
	EnvTelegramToken = "CONCIERGE_TELEGRAM_TOKEN"
	EnvDatabaseURL   = "CONCIERGE_DATABASE_URL"
)

// Load reads, merges, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv(EnvTelegramToken)); token != "" {
		cfg.Telegram.BotToken = token
	}
	if url := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); url != "" {
		cfg.Database.URL = url
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.Mode == "" {
		cfg.Telegram.Mode = "long_polling"
	}
	if cfg.Telegram.RateLimit == 0 {
		cfg.Telegram.RateLimit = 30
	}
	if cfg.Telegram.RateBurst == 0 {
		cfg.Telegram.RateBurst = 20
	}
	if cfg.Telegram.MaxReconnectAttempts == 0 {
		cfg.Telegram.MaxReconnectAttempts = 5
	}
	if cfg.Telegram.ReconnectDelay == 0 {
		cfg.Telegram.ReconnectDelay = 5 * time.Second
	}
	if cfg.Telegram.SkipDirective == "" {
		cfg.Telegram.SkipDirective = "/skip"
	}
	if cfg.Event.Time == "" {
		cfg.Event.Time = "15:00"
	}
	if cfg.Event.Timezone == "" {
		cfg.Event.Timezone = "UTC"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = string(storage.DialectSQLite)
	}
	if cfg.Database.URL == "" && cfg.Database.Driver == string(storage.DialectSQLite) {
		cfg.Database.URL = "file:concierge.db?_time_format=sqlite"
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = "0.0.0.0:8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Reminders.Schedule == "" {
		cfg.Reminders.Schedule = "@hourly"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "concierge"
	}
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports every problem found in the configuration at once.
func (c *Config) Validate() error {
	if err := ValidateVersion(c.Version); err != nil {
		return err
	}

	var issues []string
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		issues = append(issues, fmt.Sprintf("telegram.bot_token is required (or set %s)", EnvTelegramToken))
	}
	switch c.Telegram.Mode {
	case "long_polling":
	case "webhook":
		if strings.TrimSpace(c.Telegram.WebhookURL) == "" {
			issues = append(issues, "telegram.webhook_url is required in webhook mode")
		}
	default:
		issues = append(issues, fmt.Sprintf("telegram.mode %q must be long_polling or webhook", c.Telegram.Mode))
	}
	if c.Telegram.RateLimit < 0 || c.Telegram.RateBurst < 0 {
		issues = append(issues, "telegram.rate_limit and telegram.rate_burst must not be negative")
	}

	if _, err := c.Event.Start(); err != nil {
		issues = append(issues, err.Error())
	}

	if len(c.Access.AdminIDs) == 0 {
		issues = append(issues, "access.admin_ids must list at least one user")
	}
	if c.Access.AnswererID == 0 {
		issues = append(issues, "access.answerer_id is required")
	}

	if _, err := storage.ParseDialect(c.Database.Driver); err != nil {
		issues = append(issues, "database.driver: "+err.Error())
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		issues = append(issues, fmt.Sprintf("database.url is required (or set %s)", EnvDatabaseURL))
	}

	if _, err := scheduleParser.Parse(c.Reminders.Schedule); err != nil {
		issues = append(issues, fmt.Sprintf("reminders.schedule %q: %v", c.Reminders.Schedule, err))
	}

	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return fmt.Errorf("config invalid: %s", strings.Join(issues, "; "))
	}
	return nil
}
