package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies the schema. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS users (
  id          TEXT PRIMARY KEY,
  email       TEXT NOT NULL DEFAULT '',
  name        TEXT NOT NULL DEFAULT '',
  avatar_url  TEXT NOT NULL DEFAULT '',
  credits     INT  NOT NULL DEFAULT %[2]d,
  created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS projects (
  id          UUID PRIMARY KEY,
  name        TEXT NOT NULL,
  repo_url    TEXT NOT NULL,
  created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
  deleted_at  TIMESTAMP WITH TIME ZONE
);

CREATE TABLE IF NOT EXISTS project_members (
  user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  project_id  UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
  PRIMARY KEY (user_id, project_id)
);

CREATE TABLE IF NOT EXISTS source_code_embeddings (
  id                 UUID PRIMARY KEY,
  project_id         UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  file_name          TEXT NOT NULL,
  source_code        TEXT NOT NULL,
  summary            TEXT NOT NULL DEFAULT '',
  summary_embedding  vector(%[1]d),
  created_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
  UNIQUE (project_id, file_name)
);

CREATE INDEX IF NOT EXISTS source_code_embeddings_vec_idx
  ON source_code_embeddings USING ivfflat (summary_embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS commits (
  id                    UUID PRIMARY KEY,
  project_id            UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  commit_hash           TEXT NOT NULL,
  commit_message        TEXT NOT NULL,
  commit_author_name    TEXT NOT NULL,
  commit_author_avatar  TEXT NOT NULL DEFAULT '',
  commit_date           TIMESTAMP WITH TIME ZONE NOT NULL,
  summary               TEXT NOT NULL DEFAULT '',
  created_at            TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
  UNIQUE (project_id, commit_hash)
);

CREATE INDEX IF NOT EXISTS commits_project_date_idx
  ON commits (project_id, commit_date DESC);

CREATE TABLE IF NOT EXISTS questions (
  id               UUID PRIMARY KEY,
  project_id       UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  question         TEXT NOT NULL,
  answer           TEXT NOT NULL,
  file_references  JSONB NOT NULL DEFAULT '[]'::jsonb,
  created_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS meetings (
  id          UUID PRIMARY KEY,
  project_id  UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  name        TEXT NOT NULL,
  url         TEXT NOT NULL,
  status      TEXT NOT NULL DEFAULT 'PROCESSING',
  created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS issues (
  id          UUID PRIMARY KEY,
  meeting_id  UUID NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
  start_at    TEXT NOT NULL,
  end_at      TEXT NOT NULL,
  gist        TEXT NOT NULL,
  headline    TEXT NOT NULL,
  summary     TEXT NOT NULL,
  created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, dim, DefaultCredits))
	return err
}
