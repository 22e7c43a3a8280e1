package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists recording metadata in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turn_recordings (
			id TEXT PRIMARY KEY,
			connection_id TEXT NOT NULL,
			transcript TEXT NOT NULL,
			reply TEXT NOT NULL,
			audio_bytes INTEGER NOT NULL DEFAULT 0,
			asr_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			llm_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turn_recordings_conn_created ON turn_recordings (connection_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTurn(ctx context.Context, meta Metadata) error {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO turn_recordings (id, connection_id, transcript, reply, audio_bytes, asr_ms, llm_ms, total_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		meta.ID,
		meta.ConnectionID,
		meta.Transcript,
		meta.Reply,
		meta.AudioBytes,
		meta.ASRMillis,
		meta.LLMMillis,
		meta.TotalMillis,
		meta.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, connectionID string, limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, connection_id, transcript, reply, audio_bytes, asr_ms, llm_ms, total_ms, created_at
		 FROM turn_recordings WHERE connection_id=$1 ORDER BY created_at DESC LIMIT $2`,
		connectionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	items := make([]Metadata, 0, limit)
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.ID, &m.ConnectionID, &m.Transcript, &m.Reply, &m.AudioBytes, &m.ASRMillis, &m.LLMMillis, &m.TotalMillis, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
