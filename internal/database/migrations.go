package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema change.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema changes applied by EnsureSchema.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name: "create transcriptions",
		sql: `CREATE TABLE IF NOT EXISTS transcriptions (
	id                   bigserial PRIMARY KEY,
	job_id               text NOT NULL UNIQUE,
	source               text NOT NULL DEFAULT '',
	remote_url           text NOT NULL DEFAULT '',
	language             text NOT NULL DEFAULT '',
	language_code        text NOT NULL DEFAULT '',
	language_probability double precision,
	duration             double precision,
	text                 text NOT NULL,
	segment_count        int NOT NULL DEFAULT 0,
	created_at           timestamptz NOT NULL DEFAULT now()
)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'transcriptions')`,
	},
	{
		name: "create segments",
		sql: `CREATE TABLE IF NOT EXISTS segments (
	transcription_id bigint NOT NULL REFERENCES transcriptions (id) ON DELETE CASCADE,
	idx              int NOT NULL,
	start_s          double precision NOT NULL,
	end_s            double precision NOT NULL,
	text             text NOT NULL,
	words            jsonb,
	PRIMARY KEY (transcription_id, idx)
)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'segments')`,
	},
	{
		name:  "add transcriptions created_at index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions (created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_transcriptions_created_at')`,
	},
}

// EnsureSchema applies every pending migration.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. A failure is returned as a
// *MigrationError carrying the SQL still to be applied by hand.
func (db *DB) EnsureSchema(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		db.log.Debug().Msg("schema up to date")
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL as a database superuser to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart whisper-remote.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
