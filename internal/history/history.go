// Package history persists a summary of every prediction.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skufu/medipredict/internal/predict"
)

// Record is one stored prediction.
type Record struct {
	ID            string    `json:"id"`
	Session       string    `json:"session,omitempty"`
	Symptoms      []string  `json:"symptoms"`
	Prediction    string    `json:"prediction"`
	Confidence    float64   `json:"confidence"`
	RiskLevel     string    `json:"risk_level"`
	SeverityScore float64   `json:"severity_score"`
	Agreement     int       `json:"model_agreement"`
	CreatedAt     time.Time `json:"created_at"`
}

// FromResult summarizes res for storage under a new id.
func FromResult(session string, res *predict.Result) Record {
	created := res.PredictedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Record{
		ID:            uuid.NewString(),
		Session:       session,
		Symptoms:      append([]string{}, res.SymptomsEntered...),
		Prediction:    res.PrimaryPrediction,
		Confidence:    res.Confidence,
		RiskLevel:     string(res.RiskLevel),
		SeverityScore: res.SeverityScore,
		Agreement:     res.ModelAgreement,
		CreatedAt:     created,
	}
}

// Store saves and lists prediction records.
type Store interface {
	Save(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first. An empty session
	// lists every session.
	Recent(ctx context.Context, session string, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store for driver, "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}
}
