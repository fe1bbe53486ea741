package config

import "time"

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is sqlite (default) or postgres.
	Driver string `yaml:"driver"`

	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// AutoMigrate applies pending migrations when serve starts. Defaults to true.
	AutoMigrate *bool `yaml:"auto_migrate"`
}

// AutoMigrateEnabled reports whether serve should migrate on start.
func (d DatabaseConfig) AutoMigrateEnabled() bool {
	return d.AutoMigrate == nil || *d.AutoMigrate
}

// HTTPConfig configures the registration API.
type HTTPConfig struct {
	// Enabled starts the API alongside the bot. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// IsEnabled reports whether the HTTP API should run.
func (h HTTPConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// RemindersConfig configures countdown reminders.
type RemindersConfig struct {
	// Enabled schedules reminders. Defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Schedule is a cron spec or descriptor; defaults to @hourly.
	Schedule string `yaml:"schedule"`
}

// IsEnabled reports whether reminders are scheduled.
func (r RemindersConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
