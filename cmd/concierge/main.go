// Package main provides the CLI entry point for the concierge event bot.
//
// Concierge answers guest questions in Telegram, keeps an admin-editable
// FAQ, registers guests from the event website and sends countdown
// reminders before the big day.
//
// # Basic Usage
//
// Start the bot and the registration API:
//
//	concierge serve --config concierge.yaml
//
// Manage database migrations:
//
//	concierge migrate up
//	concierge migrate status
//
// # Environment Variables
//
//   - CONCIERGE_CONFIG: path to the configuration file (default: concierge.yaml)
//   - CONCIERGE_TELEGRAM_TOKEN: Telegram bot token
//   - CONCIERGE_DATABASE_URL: database connection string
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	// Event timezones must resolve on hosts without zoneinfo.
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	envConfigPath     = "CONCIERGE_CONFIG"
	defaultConfigPath = "concierge.yaml"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concierge",
		Short: "Concierge - Telegram bot for event guests",
		Long: `Concierge answers guest questions, serves an admin-editable FAQ,
registers guests from the event website and sends countdown reminders.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildGuestsCmd(),
		buildConfigCmd(),
		buildRemindCmd(),
		buildInviteCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

// resolveConfigPath falls back to $CONCIERGE_CONFIG and then to
// concierge.yaml in the working directory.
func resolveConfigPath(path string) string {
	if p := strings.TrimSpace(path); p != "" {
		return p
	}
	if env := strings.TrimSpace(os.Getenv(envConfigPath)); env != "" {
		return env
	}
	return defaultConfigPath
}
