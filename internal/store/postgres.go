package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexus-trading/scout/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS scoring_models (
	id         TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var _ ModelStore = (*PostgresStore)(nil)

// PostgresStore keeps scoring models as JSONB documents.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Ping verifies the pool can reach the database.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the models table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Model, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM scoring_models WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Model{}, fmt.Errorf("get model %s: %w", id, ErrNotFound)
		}
		return model.Model{}, fmt.Errorf("get model %s: %w", id, err)
	}

	var m model.Model
	if err := json.Unmarshal(body, &m); err != nil {
		return model.Model{}, fmt.Errorf("decode model %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Model, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, body FROM scoring_models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	out := []model.Model{}
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		var m model.Model
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, fmt.Errorf("decode model %s: %w", id, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return out, nil
}

// Put upserts m.
func (s *PostgresStore) Put(ctx context.Context, m model.Model) error {
	if m.ID == "" {
		return fmt.Errorf("put model: empty id: %w", ErrInvalidInput)
	}
	body, err := json.Marshal(m.WithDefaults())
	if err != nil {
		return fmt.Errorf("encode model %s: %w", m.ID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scoring_models (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		m.ID, body)
	if err != nil {
		return fmt.Errorf("put model %s: %w", m.ID, err)
	}
	return nil
}
