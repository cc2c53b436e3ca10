// Package onnx runs classifiers exported to ONNX (skl2onnx, zipmap
// disabled) through onnxruntime.
package onnx

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Skufu/medipredict/internal/model"
)

// Model file names inside a models directory.
const (
	ForestFile = "random_forest_model.onnx"
	BayesFile  = "naive_bayes_model.onnx"
	SVMFile    = "svm_model.onnx"
)

const (
	labelOutput = "label"
	probaOutput = "probabilities"
)

var initMu sync.Mutex

// ErrClosed is returned by a Classifier used after Close.
var ErrClosed = errors.New("onnx session closed")

// Init loads the onnxruntime shared library once per process.
func Init(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// Shutdown releases the onnxruntime environment.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Classifier is a model.Classifier backed by an onnxruntime session.
type Classifier struct {
	name     string
	input    string
	features int
	classes  int

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

// Open creates a session for the model at path and reads its declared
// input and output shapes.
func Open(name, path string) (*Classifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read model info: %w", name, err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s: expected one input, got %d", name, len(inputs))
	}
	in := inputs[0]
	if len(in.Dimensions) != 2 || in.Dimensions[1] <= 0 {
		return nil, fmt.Errorf("%s: input %q has shape %v, want [N, features]", name, in.Name, in.Dimensions)
	}

	classes := -1
	haveLabel := false
	for _, out := range outputs {
		switch out.Name {
		case labelOutput:
			haveLabel = true
		case probaOutput:
			if len(out.Dimensions) == 2 && out.Dimensions[1] > 0 {
				classes = int(out.Dimensions[1])
			}
		}
	}
	if !haveLabel || classes < 0 {
		return nil, fmt.Errorf("%s: model must expose %q and a fixed-width %q output", name, labelOutput, probaOutput)
	}

	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{labelOutput, probaOutput}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: create session: %w", name, err)
	}
	return &Classifier{
		name:     name,
		input:    in.Name,
		features: int(in.Dimensions[1]),
		classes:  classes,
		session:  session,
	}, nil
}

func (c *Classifier) Name() string     { return c.name }
func (c *Classifier) NumFeatures() int { return c.features }
func (c *Classifier) NumClasses() int  { return c.classes }

func (c *Classifier) Predict(x []float64) (int, error) {
	label, _, err := c.run(x)
	return label, err
}

func (c *Classifier) PredictProba(x []float64) ([]float64, error) {
	_, proba, err := c.run(x)
	return proba, err
}

func (c *Classifier) run(x []float64) (int, []float64, error) {
	if len(x) != c.features {
		return 0, nil, &model.ShapeError{Model: c.name, What: "features", Want: c.features, Got: len(x)}
	}
	if c.closed() {
		return 0, nil, fmt.Errorf("%s: %w", c.name, ErrClosed)
	}
	data := make([]float32, len(x))
	for i, v := range x {
		data[i] = float32(v)
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(data))), data)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: input tensor: %w", c.name, err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil, nil}
	c.mu.Lock()
	if c.session == nil {
		err = ErrClosed
	} else {
		err = c.session.Run([]ort.Value{input}, outputs)
	}
	c.mu.Unlock()
	if err != nil {
		return 0, nil, fmt.Errorf("%s: run: %w", c.name, err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	labels, ok := outputs[0].(*ort.Tensor[int64])
	if !ok || len(labels.GetData()) == 0 {
		return 0, nil, fmt.Errorf("%s: unexpected %q output", c.name, labelOutput)
	}
	probs, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return 0, nil, fmt.Errorf("%s: unexpected %q output", c.name, probaOutput)
	}
	raw := probs.GetData()
	proba := make([]float64, len(raw))
	for i, p := range raw {
		proba[i] = float64(p)
	}
	return int(labels.GetData()[0]), proba, nil
}

func (c *Classifier) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == nil
}

// Close destroys the session.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	return err
}

// LoadDir initializes onnxruntime and opens the three ONNX models plus the
// shared vocabulary and label encoder from dir.
func LoadDir(dir, libPath string) (*model.Artifacts, error) {
	if err := Init(libPath); err != nil {
		return nil, err
	}
	vocab, labels, err := model.LoadShared(dir)
	if err != nil {
		return nil, err
	}

	a := &model.Artifacts{Vocabulary: vocab, Labels: labels}
	var errs []error
	var c *Classifier
	if c, err = Open("random_forest", filepath.Join(dir, ForestFile)); err == nil {
		a.Forest = c
	}
	errs = append(errs, err)
	if c, err = Open("naive_bayes", filepath.Join(dir, BayesFile)); err == nil {
		a.Bayes = c
	}
	errs = append(errs, err)
	if c, err = Open("svm", filepath.Join(dir, SVMFile)); err == nil {
		a.SVM = c
	}
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
