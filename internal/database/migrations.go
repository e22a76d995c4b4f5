package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migration is one versioned schema change. Migrations are append-only.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator is the subset of pgxpool.Pool needed to apply migrations.
type Migrator interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_shows",
		SQL: `
CREATE TABLE IF NOT EXISTS shows (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	name_key TEXT NOT NULL UNIQUE,
	description TEXT,
	age_range TEXT,
	episode_length INTEGER,
	creator TEXT,
	release_year INTEGER,
	end_year INTEGER,
	is_ongoing BOOLEAN NOT NULL DEFAULT TRUE,
	seasons INTEGER,
	stimulation_score INTEGER NOT NULL DEFAULT 3 CHECK (stimulation_score BETWEEN 1 AND 5),
	themes TEXT[] NOT NULL DEFAULT '{}',
	image_url TEXT,
	animation_style TEXT,
	dialogue_intensity TEXT,
	scene_frequency TEXT,
	sound_effects_level TEXT,
	music_tempo TEXT,
	total_music_level TEXT,
	total_sound_effect_time_level TEXT,
	interactivity_level TEXT,
	view_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	},
	{
		Version: 2,
		Name:    "create_favorites",
		SQL: `
CREATE TABLE IF NOT EXISTS favorites (
	user_id UUID NOT NULL,
	show_id BIGINT NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, show_id)
)`,
	},
	{
		Version: 3,
		Name:    "index_shows",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_shows_stimulation ON shows (stimulation_score, id);
CREATE INDEX IF NOT EXISTS idx_shows_view_count ON shows (view_count DESC, id);
CREATE INDEX IF NOT EXISTS idx_shows_themes ON shows USING GIN (themes)`,
	},
}

// Migrations returns the registered migrations in version order.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// Migrate applies every migration not yet recorded in schema_migrations and
// returns how many were applied.
func Migrate(ctx context.Context, db Migrator) (int, error) {
	if _, err := db.Exec(ctx, schemaMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func appliedVersions(ctx context.Context, db Migrator) (map[int]bool, error) {
	rows, err := db.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db Migrator, m Migration) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migration %d: failed to begin: %w", m.Version, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("migration %d: failed to record: %w", m.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("migration %d: failed to commit: %w", m.Version, err)
	}

	return nil
}
