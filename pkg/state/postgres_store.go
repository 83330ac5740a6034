package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore keeps cursors in a Postgres table, one row per shard.
type PostgresStore struct {
	db    *sql.DB
	table string
}

func OpenPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	return NewPostgresStore(db, config.Table), nil
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
	}
}

// Ping checks connectivity and creates the cursor table if needed.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		shard_id BIGINT PRIMARY KEY,
		nonce BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create cursor table: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, shard uint32) (uint64, bool, error) {
	var nonce int64

	query := fmt.Sprintf("SELECT nonce FROM %s WHERE shard_id = $1", s.table)

	err := s.db.QueryRowContext(ctx, query, int64(shard)).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("query cursor for shard %d: %w", shard, err)
	}

	return uint64(nonce), true, nil
}

func (s *PostgresStore) Set(ctx context.Context, shard uint32, nonce uint64) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (shard_id, nonce, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (shard_id) DO UPDATE SET nonce = EXCLUDED.nonce, updated_at = now()
		WHERE %[1]s.nonce <= EXCLUDED.nonce`, s.table)

	res, err := s.db.ExecContext(ctx, query, int64(shard), int64(nonce))
	if err != nil {
		return fmt.Errorf("upsert cursor for shard %d: %w", shard, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert cursor for shard %d: %w", shard, err)
	}

	if affected == 0 {
		return ErrCursorBackwards
	}

	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
