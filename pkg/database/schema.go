package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the tables the team registry reads and writes. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
    id UUID PRIMARY KEY,
    type TEXT NOT NULL,
    username TEXT NOT NULL UNIQUE CHECK (username <> ''),
    password TEXT NOT NULL,
    queue_name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (team_id, first_name, last_name)
)`,
	`CREATE TABLE IF NOT EXISTS banks (
    name TEXT PRIMARY KEY,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS statistics (
    team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    bank_name TEXT NOT NULL REFERENCES banks(name) ON DELETE CASCADE,
    request_count BIGINT NOT NULL DEFAULT 0 CHECK (request_count >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (team_id, bank_name)
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY,
    bank_name TEXT NOT NULL REFERENCES banks(name) ON DELETE CASCADE,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_teams_queue_name ON teams (queue_name)`,
	`CREATE INDEX IF NOT EXISTS idx_students_team_id ON students (team_id)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db sqlx.ExecerContext) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
