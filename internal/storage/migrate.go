package storage

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// migrationLockKey is the postgres advisory lock held while a migration
// runs, so two instances starting together do not race.
const migrationLockKey = 0x636f6e63 // "conc"

// Migration is one embedded schema change with its rollback.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	ID        string
	AppliedAt time.Time
}

// Migrator applies the embedded migrations of one dialect.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	all     []Migration
}

func NewMigrator(db *sql.DB, dialect Dialect) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	all, err := loadMigrations(dialect)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, dialect: dialect, all: all}, nil
}

// Up applies up to steps pending migrations in order, all of them when
// steps <= 0, and returns the ids it applied.
func (m *Migrator) Up(ctx context.Context, steps int) ([]string, error) {
	_, pending, err := m.state(ctx)
	if err != nil {
		return nil, err
	}
	if steps > 0 {
		pending = pending[:min(steps, len(pending))]
	}

	var done []string
	for _, mig := range pending {
		if strings.TrimSpace(mig.UpSQL) == "" {
			return done, fmt.Errorf("migration %s has no up script", mig.ID)
		}
		err := m.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (id, applied_at) VALUES ($1, $2)`, mig.ID, time.Now().UTC())
			return err
		})
		if err != nil {
			return done, fmt.Errorf("apply migration %s: %w", mig.ID, err)
		}
		done = append(done, mig.ID)
	}
	return done, nil
}

// Down rolls back the latest steps applied migrations, newest first. steps
// <= 0 means one.
func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	applied, _, err := m.state(ctx)
	if err != nil {
		return nil, err
	}
	steps = min(max(steps, 1), len(applied))

	var done []string
	for i := len(applied) - 1; i >= len(applied)-steps; i-- {
		id := applied[i].ID
		idx := slices.IndexFunc(m.all, func(mig Migration) bool { return mig.ID == id })
		if idx < 0 {
			return done, fmt.Errorf("migration %s is applied but not embedded", id)
		}
		script := m.all[idx].DownSQL
		if strings.TrimSpace(script) == "" {
			return done, fmt.Errorf("migration %s has no down script", id)
		}
		err := m.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, script); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE id = $1`, id)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("roll back migration %s: %w", id, err)
		}
		done = append(done, id)
	}
	return done, nil
}

// Status lists applied migrations and the embedded ones still pending.
func (m *Migrator) Status(ctx context.Context) ([]AppliedMigration, []Migration, error) {
	return m.state(ctx)
}

func (m *Migrator) state(ctx context.Context) ([]AppliedMigration, []Migration, error) {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT id, applied_at FROM schema_migrations ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	seen := map[string]bool{}
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.ID, &a.AppliedAt); err != nil {
			return nil, nil, fmt.Errorf("read schema_migrations: %w", err)
		}
		applied = append(applied, a)
		seen[a.ID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read schema_migrations: %w", err)
	}

	var pending []Migration
	for _, mig := range m.all {
		if !seen[mig.ID] {
			pending = append(pending, mig)
		}
	}
	return applied, pending, nil
}

func (m *Migrator) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if m.dialect == DialectPostgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("lock: %w", err)
		}
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// loadMigrations pairs NNN_name.up.sql with NNN_name.down.sql for dialect,
// sorted by id.
func loadMigrations(dialect Dialect) ([]Migration, error) {
	dir := path.Join("migrations", string(dialect))
	files, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", dialect, err)
	}

	byID := map[string]*Migration{}
	for _, f := range files {
		id, up := strings.CutSuffix(f.Name(), ".up.sql")
		if !up {
			var down bool
			if id, down = strings.CutSuffix(f.Name(), ".down.sql"); !down {
				continue
			}
		}
		data, err := fs.ReadFile(migrationsFS, path.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", f.Name(), err)
		}
		mig, ok := byID[id]
		if !ok {
			mig = &Migration{ID: id}
			byID[id] = mig
		}
		if up {
			mig.UpSQL = string(data)
		} else {
			mig.DownSQL = string(data)
		}
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}

	out := make([]Migration, 0, len(byID))
	for _, mig := range byID {
		out = append(out, *mig)
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}
