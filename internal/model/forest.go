package model

import (
	"errors"
	"fmt"
)

// TreeNode is one node of a fitted decision tree. Leaves have Feature -1.
// A sample goes Left when x[Feature] <= Threshold.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Forest is a random forest classifier. Probabilities are the mean of the
// per-tree leaf class distributions.
type Forest struct {
	Features int    `json:"n_features"`
	Classes  int    `json:"n_classes"`
	Trees    []Tree `json:"trees"`
}

func (f *Forest) Name() string     { return "random_forest" }
func (f *Forest) NumFeatures() int { return f.Features }
func (f *Forest) NumClasses() int  { return f.Classes }

// Validate checks node wiring so that traversal always terminates.
func (f *Forest) Validate() error {
	if f.Features <= 0 || f.Classes <= 0 {
		return errors.New("random_forest: n_features and n_classes must be positive")
	}
	if len(f.Trees) == 0 {
		return errors.New("random_forest: no trees")
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("random_forest: tree %d is empty", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Feature < 0 {
				if len(n.Value) != f.Classes {
					return fmt.Errorf("random_forest: tree %d leaf %d has %d values, want %d", ti, ni, len(n.Value), f.Classes)
				}
				continue
			}
			if n.Feature >= f.Features {
				return fmt.Errorf("random_forest: tree %d node %d splits on feature %d of %d", ti, ni, n.Feature, f.Features)
			}
			// Children always follow their parent in fitted trees.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("random_forest: tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if err := checkFeatures(f.Name(), f.Features, x); err != nil {
		return nil, err
	}
	proba := make([]float64, f.Classes)
	for i := range f.Trees {
		value := f.Trees[i].leaf(x)
		var total float64
		for _, v := range value {
			total += v
		}
		if total == 0 {
			continue
		}
		for c, v := range value {
			proba[c] += v / total
		}
	}
	n := float64(len(f.Trees))
	for c := range proba {
		proba[c] /= n
	}
	return proba, nil
}

func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	return argmax(proba), nil
}
