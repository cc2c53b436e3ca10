package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id             TEXT PRIMARY KEY,
	session        TEXT NOT NULL DEFAULT '',
	symptoms       TEXT NOT NULL,
	prediction     TEXT NOT NULL,
	confidence     REAL NOT NULL,
	risk_level     TEXT NOT NULL,
	severity_score REAL NOT NULL,
	agreement      INTEGER NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_session_created ON predictions (session, created_at DESC);
`

// SQLiteStore keeps history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn, applies pragmas and creates the
// schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	symptoms, err := json.Marshal(r.Symptoms)
	if err != nil {
		return fmt.Errorf("encode symptoms: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, session, symptoms, prediction, confidence, risk_level, severity_score, agreement, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Session, string(symptoms), r.Prediction, r.Confidence, r.RiskLevel, r.SeverityScore, r.Agreement,
		r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, session string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session, symptoms, prediction, confidence, risk_level, severity_score, agreement, created_at
		 FROM predictions
		 WHERE ? = '' OR session = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		session, session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r        Record
			symptoms string
			created  int64
		)
		if err := rows.Scan(&r.ID, &r.Session, &symptoms, &r.Prediction, &r.Confidence, &r.RiskLevel,
			&r.SeverityScore, &r.Agreement, &created); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if err := json.Unmarshal([]byte(symptoms), &r.Symptoms); err != nil {
			return nil, fmt.Errorf("decode symptoms for %s: %w", r.ID, err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
