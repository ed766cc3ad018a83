package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT         PRIMARY KEY,
    patient_id    TEXT         NOT NULL,
    therapy_type  TEXT         NOT NULL DEFAULT '',
    date          TIMESTAMPTZ  NOT NULL DEFAULT now(),
    transcript    TEXT         NOT NULL,
    summary       TEXT         NOT NULL DEFAULT '',
    sentiment     TEXT         NOT NULL DEFAULT '',
    word_cloud    JSONB        NOT NULL DEFAULT '[]',
    speaking_time JSONB        NOT NULL DEFAULT '{}',
    degraded      JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sessions_patient_id
    ON sessions (patient_id);

CREATE INDEX IF NOT EXISTS idx_sessions_patient_date
    ON sessions (patient_id, date DESC);
`

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    email         TEXT         PRIMARY KEY,
    password_hash TEXT         NOT NULL,
    display_name  TEXT         NOT NULL DEFAULT '',
    role          TEXT         NOT NULL,
    verified      BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_tokens (
    token   TEXT         PRIMARY KEY,
    email   TEXT         NOT NULL REFERENCES users (email) ON DELETE CASCADE,
    expiry  TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verification_tokens_email
    ON verification_tokens (email);
`

// ddlEmbeddings is parameterized by the embedding dimension, which must
// be fixed at table creation time.
const ddlEmbeddings = `
CREATE TABLE IF NOT EXISTS session_embeddings (
    session_id TEXT PRIMARY KEY REFERENCES sessions (id) ON DELETE CASCADE,
    embedding  vector(%d) NOT NULL
);
`

// Migrate ensures the pgvector extension and all Sonara tables exist.
// Every statement is idempotent, so it is safe to run on each startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		ddlSessions,
		ddlUsers,
		fmt.Sprintf(ddlEmbeddings, embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
