// Package predict is the prediction pipeline: symptoms in, an aggregated
// multi-model result out.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/medipredict/internal/metadata"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/severity"
	"github.com/Skufu/medipredict/internal/symptom"
)

// MinSymptoms is the fewest symptoms callers accept for a prediction.
const MinSymptoms = 3

// CheckSymptoms enforces the caller-side minimum. Blank entries do not count.
func CheckSymptoms(symptoms []string) error {
	n := 0
	for _, s := range symptoms {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if n < MinSymptoms {
		return &ErrInput{Message: fmt.Sprintf("Please select at least %d symptoms", MinSymptoms)}
	}
	return nil
}

// Options wires a Predictor. Severity and Metadata may be nil, in which case
// every symptom weighs 0 and every disease gets placeholders.
type Options struct {
	Artifacts *model.Artifacts
	Severity  *severity.Table
	Metadata  *metadata.Store
	Logger    *zap.Logger
	// Degraded lists data sources that failed to load.
	Degraded []error
	Now      func() time.Time
}

// Predictor is immutable after New and safe for concurrent use.
type Predictor struct {
	artifacts *model.Artifacts
	ensemble  *model.Ensemble
	severity  *severity.Table
	metadata  *metadata.Store
	degraded  []error
	logger    *zap.Logger
	now       func() time.Time
}

// New validates the artifacts and builds a Predictor.
func New(opts Options) (*Predictor, error) {
	ensemble, err := model.NewEnsemble(opts.Artifacts)
	if err != nil {
		return nil, wrapModelError(err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Predictor{
		artifacts: opts.Artifacts,
		ensemble:  ensemble,
		severity:  opts.Severity,
		metadata:  opts.Metadata,
		degraded:  append([]error(nil), opts.Degraded...),
		logger:    logger,
		now:       now,
	}, nil
}

// Vocabulary returns the symptom vocabulary the models were trained on.
func (p *Predictor) Vocabulary() *symptom.Vocabulary {
	return p.artifacts.Vocabulary
}

// Metadata returns the disease metadata store, possibly nil.
func (p *Predictor) Metadata() *metadata.Store {
	return p.metadata
}

// Degraded returns the data sources running on fallbacks, if any.
func (p *Predictor) Degraded() error {
	return errors.Join(p.degraded...)
}

// Close releases model resources.
func (p *Predictor) Close() error {
	return p.artifacts.Close()
}

// Predict runs the pipeline on a symptom list. It does not enforce
// MinSymptoms; callers gate that with CheckSymptoms.
func (p *Predictor) Predict(ctx context.Context, symptoms []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vocab := p.artifacts.Vocabulary
	vec := vocab.Vectorize(symptoms)

	votes, err := p.ensemble.Run(vec)
	if err != nil {
		err = wrapModelError(err)
		p.logger.Error("ensemble run failed", zap.Error(err), zap.Strings("symptoms", symptoms))
		return nil, err
	}

	top, err := TopCandidates(votes.Proba, p.ensemble.Labels(), TopK)
	if err != nil {
		err = wrapModelError(err)
		p.logger.Error("decode top candidates failed", zap.Error(err))
		return nil, err
	}
	var confidence float64
	if len(top) > 0 {
		confidence = top[0].Confidence
	}

	score := p.severity.Score(symptoms)
	risk := severity.Classify(score)

	entered := make([]string, len(symptoms))
	copy(entered, symptoms)

	res := &Result{
		PrimaryPrediction:    votes.Forest,
		Confidence:           confidence,
		Top3Predictions:      top,
		RFPrediction:         votes.Forest,
		NBPrediction:         votes.Bayes,
		SVMPrediction:        votes.SVM,
		Description:          p.metadata.Description(votes.Forest),
		Precautions:          p.metadata.Precautions(votes.Forest),
		SeverityScore:        score,
		RiskLevel:            risk.Level,
		RiskCategory:         risk.Category,
		SymptomsEntered:      entered,
		ModelAgreement:       Agreement(votes.Forest, votes.Bayes, votes.SVM),
		UnrecognizedSymptoms: vocab.Unrecognized(symptoms),
		PredictedAt:          p.now().UTC(),
	}
	if res.UnrecognizedSymptoms == nil {
		res.UnrecognizedSymptoms = []string{}
	}

	p.logger.Debug("prediction",
		zap.String("primary", res.PrimaryPrediction),
		zap.Float64("confidence", res.Confidence),
		zap.Float64("severity", res.SeverityScore),
		zap.Int("agreement", res.ModelAgreement))
	return res, nil
}
