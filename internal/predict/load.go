package predict

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/metadata"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/severity"
)

// Data table file names inside the data directory.
const (
	SeverityFile     = "symptom_severity.csv"
	DescriptionsFile = "symptom_Description.csv"
	PrecautionsFile  = "symptom_precaution.csv"
)

// Sources says where a Predictor's inputs live.
type Sources struct {
	Models     model.Loader
	DataDir    string
	Attempts   int
	RetryDelay time.Duration
}

// Load reads artifacts and data tables and builds a Predictor. Missing
// classifier artifacts fail with ErrModelUnavailable; missing data tables
// are logged and replaced with fallbacks.
func Load(ctx context.Context, src Sources, logger *zap.Logger) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := src.Attempts
	if attempts == 0 {
		attempts = 2
	}
	delay := src.RetryDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}

	artifacts, err := model.LoadWithRetry(ctx, src.Models, attempts, delay)
	if err != nil {
		err = &ErrModelUnavailable{Err: err}
		logger.Error("load model artifacts", zap.Error(err))
		return nil, err
	}

	var degraded []error

	table, err := severity.LoadTable(filepath.Join(src.DataDir, SeverityFile))
	if err != nil {
		derr := &ErrDataUnavailable{Source: "severity table", Err: err}
		logger.Warn("severity weights unavailable, scoring all symptoms as 0", zap.Error(derr))
		degraded = append(degraded, derr)
		table = nil
	}

	meta, err := metadata.Load(
		filepath.Join(src.DataDir, DescriptionsFile),
		filepath.Join(src.DataDir, PrecautionsFile),
	)
	if err != nil {
		derr := &ErrDataUnavailable{Source: "disease metadata", Err: err}
		logger.Warn("disease metadata incomplete, using placeholders", zap.Error(derr))
		degraded = append(degraded, derr)
	}

	p, err := New(Options{
		Artifacts: artifacts,
		Severity:  table,
		Metadata:  meta,
		Logger:    logger,
		Degraded:  degraded,
	})
	if err != nil {
		artifacts.Close()
		logger.Error("model artifacts are inconsistent", zap.Error(err))
		return nil, err
	}

	logger.Info("predictor ready",
		zap.Int("symptoms", artifacts.Vocabulary.Len()),
		zap.Int("diseases", artifacts.Labels.Len()),
		zap.Int("severity_weights", table.Len()),
		zap.Int("degraded_sources", len(degraded)))
	return p, nil
}
