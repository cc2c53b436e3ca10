package model_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medipredict/internal/fixture"
	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/symptom"
)

func vector(t *testing.T, symptoms ...string) []float64 {
	t.Helper()
	v, err := symptom.NewVocabulary(fixture.Symptoms)
	require.NoError(t, err)
	return v.Vectorize(symptoms)
}

func TestForestPredictProba(t *testing.T) {
	f := fixture.Forest()
	require.NoError(t, f.Validate())

	proba, err := f.PredictProba(vector(t, "itching", "skin_rash", "fever"))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.05, 0.1, 0.85}, proba, 1e-9)

	code, err := f.Predict(vector(t, "fever", "cough", "joint_pain"))
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestForestValidateRejectsCycles(t *testing.T) {
	f := &model.Forest{Features: 1, Classes: 2, Trees: []model.Tree{{Nodes: []model.TreeNode{
		{Feature: 0, Threshold: 0.5, Left: 0, Right: 1},
		{Feature: -1, Value: []float64{1, 0}},
	}}}}
	assert.Error(t, f.Validate())
}

func TestGaussianNB(t *testing.T) {
	nb := fixture.Bayes()
	require.NoError(t, nb.Validate())

	code, err := nb.Predict(vector(t, "itching", "skin_rash", "fever"))
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	proba, err := nb.PredictProba(vector(t, "cough"))
	require.NoError(t, err)
	var total float64
	for _, p := range proba {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Equal(t, 0, argmaxOf(proba))
}

func TestSVCVotesForNearestPrototype(t *testing.T) {
	svc := fixture.SVM()
	require.NoError(t, svc.Validate())

	tests := []struct {
		symptoms []string
		want     int
	}{
		{[]string{"cough"}, 0},
		{[]string{"fever", "cough"}, 1},
		{[]string{"itching", "skin_rash"}, 2},
	}
	for _, tt := range tests {
		code, err := svc.Predict(vector(t, tt.symptoms...))
		require.NoError(t, err)
		assert.Equal(t, tt.want, code, "%v", tt.symptoms)
	}

	proba, err := svc.PredictProba(vector(t, "itching", "skin_rash"))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 0, 2.0 / 3}, proba, 1e-9)
}

func TestSVCBinaryLibsvmSign(t *testing.T) {
	svc := &model.SVC{
		Gamma:          1,
		SupportVectors: [][]float64{{0}, {1}},
		NSupport:       []int{1, 1},
		DualCoef:       [][]float64{{1, -1}},
		Intercept:      []float64{0},
	}
	require.NoError(t, svc.Validate())

	code, err := svc.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	code, err = svc.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	// scikit-learn's public binary attributes are negated and flip the vote.
	svc.DualCoef = [][]float64{{-1, 1}}
	code, err = svc.Predict([]float64{0})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestSVCValidate(t *testing.T) {
	svc := fixture.SVM()
	svc.Intercept = svc.Intercept[:2]
	assert.Error(t, svc.Validate())
}

func TestClassifiersRejectWrongLength(t *testing.T) {
	for _, c := range []model.Classifier{fixture.Forest(), fixture.Bayes(), fixture.SVM()} {
		_, err := c.Predict([]float64{1, 0})
		var shape *model.ShapeError
		require.ErrorAs(t, err, &shape, c.Name())
		assert.Equal(t, "features", shape.What)
		assert.Equal(t, 5, shape.Want)
		assert.Equal(t, 2, shape.Got)
	}
}

func TestLabelEncoder(t *testing.T) {
	enc, err := model.NewLabelEncoder(fixture.Diseases)
	require.NoError(t, err)

	name, err := enc.Decode(1)
	require.NoError(t, err)
	assert.Equal(t, "Common Cold", name)

	_, err = enc.Decode(3)
	assert.Error(t, err)
	_, err = enc.Decode(-1)
	assert.Error(t, err)

	code, ok := enc.Encode("Fungal infection")
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, err = model.NewLabelEncoder([]string{"a", "a"})
	assert.Error(t, err)
}

func TestLoadDirRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fixture.WriteModels(dir))

	a, err := model.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Vocabulary.Len())
	assert.Equal(t, 3, a.Labels.Len())

	ens, err := model.NewEnsemble(a)
	require.NoError(t, err)
	votes, err := ens.Run(a.Vocabulary.Vectorize([]string{"itching", "skin_rash", "fever"}))
	require.NoError(t, err)
	assert.Equal(t, "Fungal infection", votes.Forest)
	assert.Equal(t, "Fungal infection", votes.Bayes)
	assert.Equal(t, "Fungal infection", votes.SVM)
	require.NoError(t, a.Close())
}

func TestLoadDirMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fixture.WriteModels(dir))
	require.NoError(t, os.Remove(filepath.Join(dir, model.SVMFile)))

	_, err := model.LoadDir(dir)
	assert.Error(t, err)
}

func TestDecodeClassifierUnknownKind(t *testing.T) {
	_, err := model.DecodeClassifier([]byte(`{"kind":"knn"}`))
	assert.ErrorContains(t, err, "unknown model kind")

	_, err = model.DecodeClassifier([]byte(`{"kind":"svc","gamma":0}`))
	assert.Error(t, err)
}

func TestNewEnsembleRejectsMismatchedVocabulary(t *testing.T) {
	a := fixture.Artifacts()
	vocab, err := symptom.NewVocabulary([]string{"itching", "skin_rash", "fever"})
	require.NoError(t, err)
	a.Vocabulary = vocab

	_, err = model.NewEnsemble(a)
	var shape *model.ShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "features", shape.What)
}

func TestNewEnsembleRejectsMismatchedClasses(t *testing.T) {
	a := fixture.Artifacts()
	labels, err := model.NewLabelEncoder([]string{"Allergy", "Common Cold"})
	require.NoError(t, err)
	a.Labels = labels

	_, err = model.NewEnsemble(a)
	var shape *model.ShapeError
	require.ErrorAs(t, err, &shape)
	assert.Equal(t, "classes", shape.What)
}

func TestEnsembleRunRejectsWrongVector(t *testing.T) {
	ens, err := model.NewEnsemble(fixture.Artifacts())
	require.NoError(t, err)

	_, err = ens.Run([]float64{1, 1})
	var shape *model.ShapeError
	assert.ErrorAs(t, err, &shape)
}

func TestLoadWithRetry(t *testing.T) {
	calls := 0
	load := func(context.Context) (*model.Artifacts, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return fixture.Artifacts(), nil
	}
	a, err := model.LoadWithRetry(context.Background(), load, 2, time.Millisecond)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, 2, calls)
}

func TestLoadWithRetryGivesUp(t *testing.T) {
	calls := 0
	load := func(context.Context) (*model.Artifacts, error) {
		calls++
		return nil, errors.New("missing")
	}
	_, err := model.LoadWithRetry(context.Background(), load, 2, time.Millisecond)
	assert.EqualError(t, err, "missing")
	assert.Equal(t, 2, calls)
}

func TestLoadWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	load := func(context.Context) (*model.Artifacts, error) {
		calls++
		return nil, errors.New("missing")
	}
	_, err := model.LoadWithRetry(ctx, load, 3, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func argmaxOf(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
