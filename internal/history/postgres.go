package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id             UUID PRIMARY KEY,
	session        TEXT NOT NULL DEFAULT '',
	symptoms       TEXT[] NOT NULL,
	prediction     TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	risk_level     TEXT NOT NULL,
	severity_score DOUBLE PRECISION NOT NULL,
	agreement      INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_session_created ON predictions (session, created_at DESC);
`

// PostgresStore keeps history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and creates the schema.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (id, session, symptoms, prediction, confidence, risk_level, severity_score, agreement, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Session, r.Symptoms, r.Prediction, r.Confidence, r.RiskLevel, r.SeverityScore, r.Agreement, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, session string, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, session, symptoms, prediction, confidence, risk_level, severity_score, agreement, created_at
		 FROM predictions
		 WHERE $1 = '' OR session = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.Session, &r.Symptoms, &r.Prediction, &r.Confidence, &r.RiskLevel,
			&r.SeverityScore, &r.Agreement, &r.CreatedAt)
		r.CreatedAt = r.CreatedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
