package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/acuvox/acuvox/internal/confirm"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists validation records in PostgreSQL and maintains a
// pgvector index of validated utterances. The utterance index answers
// "which phrasings validated this item in past sessions" by cosine
// similarity, which feeds threshold tuning.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ddlValidations is the audit trail table.
const ddlValidations = `
CREATE TABLE IF NOT EXISTS validations (
    id           TEXT         PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    item_id      TEXT         NOT NULL,
    status       TEXT         NOT NULL,
    attempts     JSONB        NOT NULL DEFAULT '[]',
    started_at   TIMESTAMPTZ  NOT NULL,
    finished_at  TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validations_session_id
    ON validations (session_id);

CREATE INDEX IF NOT EXISTS idx_validations_item_id
    ON validations (item_id);
`

// ddlUtterances returns the utterance index DDL with the embedding
// dimension substituted. The vector dimension is baked into the column type
// at schema creation time.
func ddlUtterances(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS utterances (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    item_id     TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    embedding   vector(%d),
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_item_id
    ON utterances (item_id);

CREATE INDEX IF NOT EXISTS idx_utterances_embedding
    ON utterances USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the configured embeddings provider.
// Changing it after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlValidations,
		ddlUtterances(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit migrate: %w", err)
		}
	}
	return nil
}

// NewPostgresStore establishes a connection pool to the database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
func NewPostgresStore(ctx context.Context, dsn string, embeddingDimensions int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// SaveRecord upserts one validation record. A record saved twice (e.g. on
// retry after a transient write failure) is replaced, not duplicated.
func (s *PostgresStore) SaveRecord(ctx context.Context, sessionID string, rec confirm.ValidationRecord) error {
	attempts, err := json.Marshal(rec.Attempts)
	if err != nil {
		return fmt.Errorf("audit postgres: marshal attempts: %w", err)
	}

	const q = `
		INSERT INTO validations
		    (id, session_id, item_id, status, attempts, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    session_id  = EXCLUDED.session_id,
		    item_id     = EXCLUDED.item_id,
		    status      = EXCLUDED.status,
		    attempts    = EXCLUDED.attempts,
		    started_at  = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at`

	if _, err := s.pool.Exec(ctx, q,
		rec.ID,
		sessionID,
		rec.ItemID,
		string(rec.Status),
		attempts,
		rec.StartedAt,
		rec.FinishedAt,
	); err != nil {
		return fmt.Errorf("audit postgres: save record: %w", err)
	}
	return nil
}

// Utterance is one indexed validated answer.
type Utterance struct {
	ID        string
	SessionID string
	ItemID    string
	Text      string
	Embedding []float32
	Timestamp time.Time
}

// UtteranceResult is one similarity search hit, ordered by ascending cosine
// distance (most similar first).
type UtteranceResult struct {
	Utterance Utterance
	Distance  float64
}

// IndexUtterance upserts a pre-embedded validated utterance.
func (s *PostgresStore) IndexUtterance(ctx context.Context, u Utterance) error {
	const q = `
		INSERT INTO utterances
		    (id, session_id, item_id, text, embedding, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    item_id    = EXCLUDED.item_id,
		    text       = EXCLUDED.text,
		    embedding  = EXCLUDED.embedding,
		    timestamp  = EXCLUDED.timestamp`

	vec := pgvector.NewVector(u.Embedding)
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, q, u.ID, u.SessionID, u.ItemID, u.Text, vec, ts); err != nil {
		return fmt.Errorf("audit postgres: index utterance: %w", err)
	}
	return nil
}

// SearchSimilar finds the topK indexed utterances closest (cosine distance)
// to the supplied embedding, optionally restricted to one item.
func (s *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, topK int, itemID string) ([]UtteranceResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec}
	where := ""
	if itemID != "" {
		args = append(args, itemID)
		where = fmt.Sprintf("WHERE item_id = $%d", len(args))
	}
	args = append(args, topK)

	q := fmt.Sprintf(`
		SELECT id, session_id, item_id, text, embedding, timestamp,
		       embedding <=> $1 AS distance
		FROM   utterances
		%s
		ORDER  BY distance
		LIMIT  $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UtteranceResult, error) {
		var (
			ur  UtteranceResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&ur.Utterance.ID,
			&ur.Utterance.SessionID,
			&ur.Utterance.ItemID,
			&ur.Utterance.Text,
			&vec,
			&ur.Utterance.Timestamp,
			&ur.Distance,
		); err != nil {
			return UtteranceResult{}, err
		}
		ur.Utterance.Embedding = vec.Slice()
		return ur, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit postgres: scan rows: %w", err)
	}
	if results == nil {
		results = []UtteranceResult{}
	}
	return results, nil
}
