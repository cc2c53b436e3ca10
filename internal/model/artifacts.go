package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Skufu/medipredict/internal/symptom"
)

// Artifact file names inside a models directory.
const (
	VocabularyFile   = "symptom_columns.json"
	LabelEncoderFile = "label_encoder.json"
	ForestFile       = "random_forest_model.json"
	BayesFile        = "naive_bayes_model.json"
	SVMFile          = "svm_model.json"
)

// Artifacts is everything inference needs, loaded once and read-only
// afterwards.
type Artifacts struct {
	Vocabulary *symptom.Vocabulary
	Labels     *LabelEncoder
	Forest     Classifier
	Bayes      Classifier
	SVM        Classifier
}

// Close releases classifiers that hold native resources.
func (a *Artifacts) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for _, c := range []Classifier{a.Forest, a.Bayes, a.SVM} {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// Loader produces a fresh set of artifacts.
type Loader func(ctx context.Context) (*Artifacts, error)

// LoadShared reads the vocabulary and label encoder, which every backend
// shares.
func LoadShared(dir string) (*symptom.Vocabulary, *LabelEncoder, error) {
	vocab, err := symptom.LoadVocabulary(filepath.Join(dir, VocabularyFile))
	if err != nil {
		return nil, nil, err
	}
	labels, err := LoadLabelEncoder(filepath.Join(dir, LabelEncoderFile))
	if err != nil {
		return nil, nil, err
	}
	return vocab, labels, nil
}

// LoadDir loads the JSON-exported native classifiers from dir.
func LoadDir(dir string) (*Artifacts, error) {
	vocab, labels, err := LoadShared(dir)
	if err != nil {
		return nil, err
	}
	forest, err := LoadClassifier(filepath.Join(dir, ForestFile))
	if err != nil {
		return nil, err
	}
	bayes, err := LoadClassifier(filepath.Join(dir, BayesFile))
	if err != nil {
		return nil, err
	}
	svm, err := LoadClassifier(filepath.Join(dir, SVMFile))
	if err != nil {
		return nil, err
	}
	return &Artifacts{Vocabulary: vocab, Labels: labels, Forest: forest, Bayes: bayes, SVM: svm}, nil
}

// DirLoader adapts LoadDir to a Loader.
func DirLoader(dir string) Loader {
	return func(context.Context) (*Artifacts, error) {
		return LoadDir(dir)
	}
}

type envelope struct {
	Kind string `json:"kind"`
}

type validator interface {
	Validate() error
}

// LoadClassifier decodes one classifier file, dispatching on its "kind".
func LoadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	c, err := DecodeClassifier(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// DecodeClassifier decodes a classifier from its JSON form.
func DecodeClassifier(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	var c Classifier
	switch env.Kind {
	case "random_forest":
		c = &Forest{}
	case "gaussian_nb":
		c = &GaussianNB{}
	case "svc":
		c = &SVC{}
	default:
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	if v, ok := c.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// EncodeClassifier renders a native classifier in the form LoadClassifier
// reads.
func EncodeClassifier(c Classifier) ([]byte, error) {
	var kind string
	switch c.(type) {
	case *Forest:
		kind = "random_forest"
	case *GaussianNB:
		kind = "gaussian_nb"
	case *SVC:
		kind = "svc"
	default:
		return nil, fmt.Errorf("cannot encode %T", c)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["kind"], _ = json.Marshal(kind)
	return json.Marshal(fields)
}

// LoadWithRetry runs load up to attempts times, waiting delay between
// tries. Context errors are returned immediately.
func LoadWithRetry(ctx context.Context, load Loader, attempts int, delay time.Duration) (*Artifacts, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		a, err := load(ctx)
		if err == nil {
			return a, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
