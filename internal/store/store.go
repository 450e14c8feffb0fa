package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a conversation or message row does not exist
// for the requesting owner. The API layer maps it to 404 "sync first".
var ErrNotFound = errors.New("not found")

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// ensureSchema creates the tables on startup if they do not exist. The unique
// constraint on (owner_id, provider, external_id) is what makes concurrent
// first-pushes of the same conversation safe; ON DELETE CASCADE handles
// explicit conversation deletion.
func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id          UUID PRIMARY KEY,
			owner_id    TEXT NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color       TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS conversations (
			id             UUID PRIMARY KEY,
			owner_id       TEXT NOT NULL,
			provider       TEXT NOT NULL,
			external_id    TEXT NOT NULL,
			title          TEXT NOT NULL DEFAULT '',
			url            TEXT NOT NULL DEFAULT '',
			project_id     UUID REFERENCES projects(id) ON DELETE SET NULL,
			message_count  INT NOT NULL DEFAULT 0,
			last_synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (owner_id, provider, external_id)
		);

		ALTER TABLE conversations ADD COLUMN IF NOT EXISTS project_id UUID REFERENCES projects(id) ON DELETE SET NULL;

		CREATE TABLE IF NOT EXISTS messages (
			id              UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			owner_id        TEXT NOT NULL,
			provider        TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			preview         TEXT NOT NULL,
			position        INT NOT NULL,
			captured_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (conversation_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner_id, captured_at DESC);

		CREATE TABLE IF NOT EXISTS bookmarks (
			id              UUID PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			position        INT NOT NULL,
			note            TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (owner_id, conversation_id, position)
		);

		CREATE TABLE IF NOT EXISTS exports (
			id               UUID PRIMARY KEY,
			owner_id         TEXT NOT NULL,
			conversation_ids UUID[] NOT NULL,
			format           TEXT NOT NULL,
			status           TEXT NOT NULL DEFAULT 'pending',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at     TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_exports_owner ON exports(owner_id, created_at DESC);
	`)
	return err
}
