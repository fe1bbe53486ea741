package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/concierge/internal/config"
	"github.com/haasonsaas/concierge/internal/reminders"
	"github.com/haasonsaas/concierge/internal/storage"
)

// =============================================================================
// Migration Command Handlers
// =============================================================================

func runMigrateUp(cmd *cobra.Command, configPath string, steps int) error {
	slog.Info("running database migrations", "config", configPath, "steps", steps)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dialect, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	applied, err := migrator.Up(cmd.Context(), steps)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations.")
		return nil
	}
	for _, id := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", id)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, configPath string, steps int) error {
	slog.Warn("rolling back migrations", "config", configPath, "steps", steps)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dialect, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	rolled, err := migrator.Down(cmd.Context(), steps)
	if err != nil {
		return err
	}
	if len(rolled) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to roll back.")
		return nil
	}
	for _, id := range rolled {
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dialect, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	applied, pending, err := migrator.Status(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Migration Status")
	fmt.Fprintln(out, "================")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Applied migrations:")
	if len(applied) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, entry := range applied {
		fmt.Fprintf(out, "  - %s (%s)\n", entry.ID, entry.AppliedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Pending migrations:")
	if len(pending) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, entry := range pending {
		fmt.Fprintf(out, "  - %s\n", entry.ID)
	}
	return nil
}

// =============================================================================
// Guest Command Handlers
// =============================================================================

func runGuestsList(cmd *cobra.Command, configPath, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Event.Location()
	if err != nil {
		return err
	}
	_, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	stores := storage.NewSQLStores(db, nil)
	defer stores.Close()

	guests, err := stores.Guests.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list guests: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(guests)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGUESTS\tSTATUS\tREGISTERED\tCOMMENT")
	total := 0
	for _, g := range guests {
		total += g.GuestCount
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			g.ID, g.Name, g.GuestCount, g.Status, g.CreatedAt.In(loc).Format("02.01.2006 15:04"), g.Comment)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d registrations, %d guests\n", len(guests), total)
	return nil
}

// =============================================================================
// Config Command Handlers
// =============================================================================

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return err
}

func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	start, _ := cfg.Event.Start()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s is valid\n", configPath)
	fmt.Fprintf(out, "  event:     %s on %s\n", cfg.Event.Title, start.Format("02.01.2006 15:04 MST"))
	fmt.Fprintf(out, "  telegram:  %s\n", cfg.Telegram.Mode)
	fmt.Fprintf(out, "  database:  %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "  admins:    %d\n", len(cfg.Access.AdminIDs))
	return nil
}

// =============================================================================
// Reminder Command Handlers
// =============================================================================

func runRemindTest(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	start, err := cfg.Event.Start()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, false, cmd.ErrOrStderr())

	_, db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	stores := storage.NewSQLStores(db, nil)
	defer stores.Close()

	adapter, err := newTelegramAdapter(cfg.Telegram, logger)
	if err != nil {
		return err
	}
	if err := adapter.Open(); err != nil {
		return err
	}

	svc, err := reminders.NewService(reminders.Config{
		Users:      stores.Users,
		Messenger:  adapter,
		EventStart: start,
		Title:      cfg.Event.Title,
		Schedule:   cfg.Reminders.Schedule,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	res, err := svc.SendTest(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent: %d\nFailed: %d\nTotal users: %d\n", res.Sent, res.Failed, res.Total)
	return nil
}

// =============================================================================
// Invite Command Handlers
// =============================================================================

func runInviteQR(cmd *cobra.Command, configPath, url, output string, size int) error {
	if strings.TrimSpace(url) == "" {
		cfg, err := config.Load(resolveConfigPath(configPath))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		url = cfg.Event.InviteURL
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("no URL to encode: set event.invite_url or pass --url")
	}

	if output != "" {
		if size <= 0 {
			return fmt.Errorf("size must be positive, got %d", size)
		}
		if err := qrcode.WriteFile(url, qrcode.Medium, size, output); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d) for %s\n", output, size, size, url)
		return nil
	}

	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode qr code: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), code.ToSmallString(false))
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
