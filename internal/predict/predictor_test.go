package predict

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Skufu/medipredict/internal/fixture"
	"github.com/Skufu/medipredict/internal/metadata"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/severity"
)

// stubClassifier always predicts the same class.
type stubClassifier struct {
	name  string
	code  int
	proba []float64
	err   error
}

func (s stubClassifier) Name() string     { return s.name }
func (s stubClassifier) NumFeatures() int { return len(fixture.Symptoms) }
func (s stubClassifier) NumClasses() int  { return len(fixture.Diseases) }

func (s stubClassifier) Predict([]float64) (int, error) { return s.code, s.err }

func (s stubClassifier) PredictProba([]float64) ([]float64, error) {
	if s.proba != nil {
		return s.proba, s.err
	}
	p := make([]float64, len(fixture.Diseases))
	p[s.code] = 1
	return p, s.err
}

func loadFixture(t *testing.T) *Predictor {
	t.Helper()
	models, data := t.TempDir(), t.TempDir()
	require.NoError(t, fixture.WriteModels(models))
	require.NoError(t, fixture.WriteData(data))

	p, err := Load(context.Background(), Sources{
		Models:  model.DirLoader(models),
		DataDir: data,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, p.Degraded())
	t.Cleanup(func() { p.Close() })
	return p
}

func stubbed(t *testing.T, rf, nb, svm int) *Predictor {
	t.Helper()
	a := fixture.Artifacts()
	a.Forest = stubClassifier{name: "rf", code: rf}
	a.Bayes = stubClassifier{name: "nb", code: nb}
	a.SVM = stubClassifier{name: "svm", code: svm}
	p, err := New(Options{Artifacts: a})
	require.NoError(t, err)
	return p
}

func TestPredictEndToEnd(t *testing.T) {
	p := loadFixture(t)
	input := []string{"itching", "skin_rash", "fever"}

	res, err := p.Predict(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, input, res.SymptomsEntered)
	assert.Equal(t, "Fungal infection", res.PrimaryPrediction)
	assert.Equal(t, res.PrimaryPrediction, res.RFPrediction)
	assert.Equal(t, 85.0, res.Confidence)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 100.0)
	assert.Equal(t, []Candidate{
		{Disease: "Fungal infection", Confidence: 85},
		{Disease: "Common Cold", Confidence: 10},
		{Disease: "Allergy", Confidence: 5},
	}, res.Top3Predictions)
	assert.Equal(t, 3, res.ModelAgreement)
	assert.Equal(t, 9.0, res.SeverityScore)
	assert.Equal(t, severity.LevelModerate, res.RiskLevel)
	assert.Equal(t, "warning", res.RiskCategory)
	assert.NotEmpty(t, res.Description)
	assert.NotEqual(t, metadata.NoDescription, res.Description)
	assert.LessOrEqual(t, len(res.Precautions), metadata.MaxPrecautions)
	assert.Len(t, res.Precautions, 4)
	assert.Empty(t, res.UnrecognizedSymptoms)
}

func TestPredictDoesNotAliasInput(t *testing.T) {
	p := loadFixture(t)
	input := []string{"Fever", "Cough", "Joint Pain"}

	res, err := p.Predict(context.Background(), input)
	require.NoError(t, err)
	input[0] = "changed"
	assert.Equal(t, "Fever", res.SymptomsEntered[0])
	assert.Equal(t, "Common Cold", res.PrimaryPrediction)
	assert.Equal(t, 12.0, res.SeverityScore)
}

func TestPredictMetadataMiss(t *testing.T) {
	p := loadFixture(t)

	res, err := p.Predict(context.Background(), []string{"cough", "headache", "nausea"})
	require.NoError(t, err)
	assert.Equal(t, "Allergy", res.PrimaryPrediction)
	assert.Equal(t, metadata.NoDescription, res.Description)
	assert.NotNil(t, res.Precautions)
	assert.Empty(t, res.Precautions)
	assert.Equal(t, []string{"headache", "nausea"}, res.UnrecognizedSymptoms)
}

func TestPredictUnknownOnlySymptoms(t *testing.T) {
	p := loadFixture(t)

	res, err := p.Predict(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Zero(t, res.SeverityScore)
	assert.Equal(t, severity.LevelLow, res.RiskLevel)
	assert.NotEmpty(t, res.PrimaryPrediction)
}

func TestPredictDuplicatesAddSeverityOnly(t *testing.T) {
	p := loadFixture(t)

	once, err := p.Predict(context.Background(), []string{"fever"})
	require.NoError(t, err)
	twice, err := p.Predict(context.Background(), []string{"fever", "Fever"})
	require.NoError(t, err)

	assert.Equal(t, 2*once.SeverityScore, twice.SeverityScore)
	assert.Equal(t, once.Top3Predictions, twice.Top3Predictions)
}

func TestPredictTop3SortedDescending(t *testing.T) {
	p := loadFixture(t)
	inputs := [][]string{
		{"itching"},
		{"cough", "fever"},
		{"joint_pain", "skin_rash", "cough"},
		{},
	}
	for _, in := range inputs {
		res, err := p.Predict(context.Background(), in)
		require.NoError(t, err)
		require.LessOrEqual(t, len(res.Top3Predictions), TopK)
		for i := 1; i < len(res.Top3Predictions); i++ {
			assert.GreaterOrEqual(t, res.Top3Predictions[i-1].Confidence, res.Top3Predictions[i].Confidence, "%v", in)
		}
		assert.Equal(t, res.Top3Predictions[0].Confidence, res.Confidence)
	}
}

func TestModelAgreement(t *testing.T) {
	tests := []struct {
		rf, nb, svm int
		want        int
	}{
		{2, 2, 2, 3},
		{0, 1, 2, 0},
		{0, 1, 1, 1},
		{1, 1, 0, 1},
		{1, 0, 1, 1},
	}
	for _, tt := range tests {
		p := stubbed(t, tt.rf, tt.nb, tt.svm)
		res, err := p.Predict(context.Background(), []string{"fever", "cough", "itching"})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.ModelAgreement, "rf=%d nb=%d svm=%d", tt.rf, tt.nb, tt.svm)
		assert.GreaterOrEqual(t, res.ModelAgreement, 0)
		assert.LessOrEqual(t, res.ModelAgreement, 3)
	}
}

func TestPredictWithoutDataTables(t *testing.T) {
	p := stubbed(t, 1, 1, 1)
	res, err := p.Predict(context.Background(), []string{"fever", "fever", "cough"})
	require.NoError(t, err)
	assert.Zero(t, res.SeverityScore)
	assert.Equal(t, metadata.NoDescription, res.Description)
	assert.Empty(t, res.Precautions)
}

func TestPredictModelFailure(t *testing.T) {
	a := fixture.Artifacts()
	a.Bayes = stubClassifier{name: "nb", err: errors.New("corrupt weights")}
	p, err := New(Options{Artifacts: a})
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), []string{"fever", "cough", "itching"})
	var unavailable *ErrModelUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, KindModelUnavailable, KindOf(err))
}

func TestPredictBadProbabilityShape(t *testing.T) {
	a := fixture.Artifacts()
	a.Forest = stubClassifier{name: "rf", proba: []float64{1, 0}}
	p, err := New(Options{Artifacts: a})
	require.NoError(t, err)

	_, err = p.Predict(context.Background(), []string{"fever", "cough", "itching"})
	assert.Equal(t, KindVocabularyMismatch, KindOf(err))
}

func TestPredictCanceledContext(t *testing.T) {
	p := stubbed(t, 0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Predict(ctx, []string{"fever", "cough", "itching"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p, err := New(Options{Artifacts: fixture.Artifacts(), Now: func() time.Time { return at }})
	require.NoError(t, err)
	res, err := p.Predict(context.Background(), []string{"fever"})
	require.NoError(t, err)
	assert.Equal(t, at, res.PredictedAt)
}

func TestNewRejectsVocabularyMismatch(t *testing.T) {
	a := fixture.Artifacts()
	a.Forest = &model.Forest{Features: 4, Classes: 3, Trees: fixture.Forest().Trees}
	_, err := New(Options{Artifacts: a})
	var mismatch *ErrVocabularyMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, KindVocabularyMismatch, KindOf(err))
}

func TestLoadMissingModels(t *testing.T) {
	_, err := Load(context.Background(), Sources{
		Models:     model.DirLoader(t.TempDir()),
		DataDir:    t.TempDir(),
		RetryDelay: time.Millisecond,
	}, zaptest.NewLogger(t))
	assert.Equal(t, KindModelUnavailable, KindOf(err))
}

func TestLoadDegradesWithoutData(t *testing.T) {
	models := t.TempDir()
	require.NoError(t, fixture.WriteModels(models))
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, DescriptionsFile), []byte(fixture.DescriptionsCSV), 0o644))

	p, err := Load(context.Background(), Sources{Models: model.DirLoader(models), DataDir: data}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	degraded := p.Degraded()
	require.Error(t, degraded)
	assert.Equal(t, KindDataUnavailable, KindOf(degraded))
	assert.True(t, strings.Contains(degraded.Error(), "severity table"))

	res, err := p.Predict(context.Background(), []string{"itching", "skin_rash", "fever"})
	require.NoError(t, err)
	assert.Zero(t, res.SeverityScore)
	assert.Equal(t, severity.LevelLow, res.RiskLevel)
	assert.NotEqual(t, metadata.NoDescription, res.Description)
	assert.Empty(t, res.Precautions)
}

func TestCheckSymptoms(t *testing.T) {
	assert.NoError(t, CheckSymptoms([]string{"a", "b", "c"}))

	for _, in := range [][]string{nil, {"a", "b"}, {"a", "b", " "}} {
		err := CheckSymptoms(in)
		require.Error(t, err, "%v", in)
		assert.Equal(t, KindInput, KindOf(err))
		assert.Equal(t, "Please select at least 3 symptoms", err.Error())
	}
}

func TestTopCandidates(t *testing.T) {
	labels, err := model.NewLabelEncoder([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	got, err := TopCandidates([]float64{0.1, 0.4, 0.1, 0.4}, labels, 3)
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{"b", 40}, {"d", 40}, {"a", 10}}, got)

	got, err = TopCandidates([]float64{0.7, 0.3}, labels, 3)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 33.33, Percent(1.0/3))
	assert.Equal(t, 66.67, Percent(2.0/3))
	assert.Equal(t, 100.0, Percent(1))
	assert.Equal(t, 0.0, Percent(0))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindModelUnavailable, KindOf(fmt.Errorf("wrap: %w", &ErrModelUnavailable{Err: errors.New("x")})))
	assert.Equal(t, KindDataUnavailable, KindOf(&ErrDataUnavailable{Source: "s", Err: errors.New("x")}))
}
