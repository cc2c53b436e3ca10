package model

import (
	"errors"
	"fmt"
)

// Votes is the outcome of one ensemble run.
type Votes struct {
	Forest string
	Bayes  string
	SVM    string
	// Proba is the primary (forest) model's distribution in class-code order.
	Proba []float64
}

// Ensemble runs the three classifiers on one feature vector. The forest is
// the primary model.
type Ensemble struct {
	labels   *LabelEncoder
	models   [3]Classifier
	features int
}

// NewEnsemble checks that every model agrees with the vocabulary and label
// encoding before any request is served.
func NewEnsemble(a *Artifacts) (*Ensemble, error) {
	if a == nil || a.Vocabulary == nil || a.Labels == nil {
		return nil, errors.New("ensemble: vocabulary and label encoder are required")
	}
	e := &Ensemble{
		labels:   a.Labels,
		models:   [3]Classifier{a.Forest, a.Bayes, a.SVM},
		features: a.Vocabulary.Len(),
	}
	for i, m := range e.models {
		if m == nil {
			return nil, fmt.Errorf("ensemble: model %d is missing", i)
		}
		if m.NumFeatures() != e.features {
			return nil, &ShapeError{Model: m.Name(), What: "features", Want: m.NumFeatures(), Got: e.features}
		}
		if m.NumClasses() != a.Labels.Len() {
			return nil, &ShapeError{Model: m.Name(), What: "classes", Want: m.NumClasses(), Got: a.Labels.Len()}
		}
	}
	return e, nil
}

// Labels returns the shared label encoder.
func (e *Ensemble) Labels() *LabelEncoder {
	return e.labels
}

// Run predicts a label with each model and the class distribution with the
// primary model.
func (e *Ensemble) Run(x []float64) (Votes, error) {
	if len(x) != e.features {
		return Votes{}, &ShapeError{Model: "ensemble", What: "features", Want: e.features, Got: len(x)}
	}
	var labels [3]string
	for i, m := range e.models {
		code, err := m.Predict(x)
		if err != nil {
			return Votes{}, fmt.Errorf("%s predict: %w", m.Name(), err)
		}
		label, err := e.labels.Decode(code)
		if err != nil {
			return Votes{}, fmt.Errorf("%s decode: %w", m.Name(), err)
		}
		labels[i] = label
	}
	proba, err := e.models[0].PredictProba(x)
	if err != nil {
		return Votes{}, fmt.Errorf("%s predict_proba: %w", e.models[0].Name(), err)
	}
	if len(proba) != e.labels.Len() {
		return Votes{}, &ShapeError{Model: e.models[0].Name(), What: "probabilities", Want: e.labels.Len(), Got: len(proba)}
	}
	return Votes{Forest: labels[0], Bayes: labels[1], SVM: labels[2], Proba: proba}, nil
}
