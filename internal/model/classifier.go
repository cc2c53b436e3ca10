// Package model loads the trained classifiers and runs them as an ensemble.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Classifier is one trained model over a fixed feature space and label
// encoding.
type Classifier interface {
	Name() string
	NumFeatures() int
	NumClasses() int
	Predict(x []float64) (int, error)
	PredictProba(x []float64) ([]float64, error)
}

// ShapeError reports a feature or class count that disagrees with what a
// model was trained on.
type ShapeError struct {
	Model string
	What  string
	Want  int
	Got   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: model expects %d, got %d", e.Model, e.What, e.Want, e.Got)
}

func checkFeatures(name string, want int, x []float64) error {
	if len(x) != want {
		return &ShapeError{Model: name, What: "features", Want: want, Got: len(x)}
	}
	return nil
}

// argmax returns the first index of the largest value.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// LabelEncoder maps integer class codes to disease names.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

type labelEncoderFile struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder builds an encoder whose code i decodes to classes[i].
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("label encoder has no classes")
	}
	e := &LabelEncoder{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		e.classes[i] = c
		e.index[c] = i
	}
	return e, nil
}

// LoadLabelEncoder reads {"classes": [...]} from path.
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label encoder: %w", err)
	}
	var f labelEncoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode label encoder: %w", err)
	}
	return NewLabelEncoder(f.Classes)
}

func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// Classes returns a copy of the class names in code order.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Decode returns the disease name for code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.classes) {
		return "", fmt.Errorf("class code %d out of range [0,%d)", code, len(e.classes))
	}
	return e.classes[code], nil
}

// Encode returns the code for a disease name.
func (e *LabelEncoder) Encode(label string) (int, bool) {
	code, ok := e.index[label]
	return code, ok
}
