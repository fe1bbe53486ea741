package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command that runs the bot, the
// registration API and the reminder scheduler.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the registration API",
		Long: `Run the Telegram bot together with the registration API.

The server will:
1. Load and validate the configuration file
2. Open the database and apply pending migrations
3. Connect to Telegram (long polling or webhook)
4. Serve the registration API, /health and /metrics
5. Schedule countdown reminders
6. Reload admin and owner lists when the config file changes

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  concierge serve

  # Start with a custom config and debug logging
  concierge serve --config /etc/concierge/wedding.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// =============================================================================
// Migration Commands
// =============================================================================

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Manage database migrations.

Migrations are embedded in the binary and applied in order of their
numeric prefix. serve applies pending migrations on start unless
database.auto_migrate is false.`,
	}
	cmd.AddCommand(buildMigrateUpCmd(), buildMigrateDownCmd(), buildMigrateStatusCmd())
	return cmd
}

func buildMigrateUpCmd() *cobra.Command {
	var (
		configPath string
		steps      int
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Run pending migrations",
		Example: `  # Apply all pending migrations
  concierge migrate up

  # Apply only the next migration
  concierge migrate up --steps 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd, resolveConfigPath(configPath), steps)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().IntVarP(&steps, "steps", "n", 0, "Number of migrations to apply (0 = all)")
	return cmd
}

func buildMigrateDownCmd() *cobra.Command {
	var (
		configPath string
		steps      int
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long: `Rollback the last N database migrations.

Rolling back drops tables, so guest registrations and FAQ entries stored in
them are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateDown(cmd, resolveConfigPath(configPath), steps)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")
	return cmd
}

func buildMigrateStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

// =============================================================================
// Guest Commands
// =============================================================================

func buildGuestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guests",
		Short: "Inspect guest registrations",
	}
	cmd.AddCommand(buildGuestsListCmd())
	return cmd
}

func buildGuestsListCmd() *cobra.Command {
	var (
		configPath string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered guests",
		Example: `  # Print a table
  concierge guests list

  # Export as JSON
  concierge guests list --format json > guests.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuestsList(cmd, resolveConfigPath(configPath), format)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(buildConfigSchemaCmd(), buildConfigValidateCmd())
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSchema(cmd)
		},
	}
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

// =============================================================================
// Reminder Commands
// =============================================================================

func buildRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Countdown reminder commands",
	}
	cmd.AddCommand(buildRemindTestCmd())
	return cmd
}

func buildRemindTestCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a countdown message to every subscriber now",
		Long: `Send the current countdown to every subscribed user without waiting
for a milestone. Useful to check the bot token and message formatting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemindTest(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

// =============================================================================
// Invite Commands
// =============================================================================

func buildInviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Invitation helpers",
	}
	cmd.AddCommand(buildInviteQRCmd())
	return cmd
}

func buildInviteQRCmd() *cobra.Command {
	var (
		configPath string
		url        string
		output     string
		size       int
	)
	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Render a QR code for the registration site",
		Long: `Render a QR code pointing at event.invite_url (or --url) for printed
invitations. Without --output the code is drawn in the terminal.`,
		Example: `  # Draw in the terminal
  concierge invite qr

  # Write a PNG for the printer
  concierge invite qr --output invite.png --size 1024`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInviteQR(cmd, configPath, url, output, size)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&url, "url", "", "URL to encode instead of event.invite_url")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file to write")
	cmd.Flags().IntVar(&size, "size", 512, "PNG size in pixels")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("concierge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
