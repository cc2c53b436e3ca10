package predict

import (
	"errors"
	"fmt"

	"github.com/Skufu/medipredict/internal/model"
)

// Kind names an error class for API responses and metrics.
type Kind string

const (
	KindInput              Kind = "input"
	KindModelUnavailable   Kind = "model_unavailable"
	KindDataUnavailable    Kind = "data_unavailable"
	KindVocabularyMismatch Kind = "vocabulary_mismatch"
	KindInternal           Kind = "internal"
)

// ErrInput indicates the caller's symptom list failed a precondition.
type ErrInput struct {
	Message string
}

func (e *ErrInput) Error() string { return e.Message }

// ErrModelUnavailable indicates classifier artifacts are missing, malformed
// or failed at inference time.
type ErrModelUnavailable struct {
	Err error
}

func (e *ErrModelUnavailable) Error() string {
	return fmt.Sprintf("model unavailable: %v", e.Err)
}

func (e *ErrModelUnavailable) Unwrap() error { return e.Err }

// ErrDataUnavailable indicates a severity or metadata table could not be
// read. Predictions continue with zero weights or placeholders.
type ErrDataUnavailable struct {
	Source string
	Err    error
}

func (e *ErrDataUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *ErrDataUnavailable) Unwrap() error { return e.Err }

// ErrVocabularyMismatch indicates the feature vector does not have the shape
// the classifiers were trained on.
type ErrVocabularyMismatch struct {
	Err error
}

func (e *ErrVocabularyMismatch) Error() string {
	return fmt.Sprintf("vocabulary mismatch: %v", e.Err)
}

func (e *ErrVocabularyMismatch) Unwrap() error { return e.Err }

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	var (
		input       *ErrInput
		unavailable *ErrModelUnavailable
		data        *ErrDataUnavailable
		mismatch    *ErrVocabularyMismatch
	)
	switch {
	case errors.As(err, &input):
		return KindInput
	case errors.As(err, &mismatch):
		return KindVocabularyMismatch
	case errors.As(err, &unavailable):
		return KindModelUnavailable
	case errors.As(err, &data):
		return KindDataUnavailable
	default:
		return KindInternal
	}
}

// wrapModelError sorts inference failures into mismatch or unavailable.
func wrapModelError(err error) error {
	var shape *model.ShapeError
	if errors.As(err, &shape) {
		return &ErrVocabularyMismatch{Err: err}
	}
	return &ErrModelUnavailable{Err: err}
}
