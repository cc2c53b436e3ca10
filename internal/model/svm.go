package model

import (
	"errors"
	"fmt"
	"math"
)

// SVC is a one-vs-one RBF support vector classifier in libsvm layout:
// support vectors grouped by class, DualCoef with K-1 rows and one
// intercept per class pair (i<j, row-major). Coefficients carry the
// libsvm sign: a positive decision value votes for the lower class. For
// binary models scikit-learn negates its public dual_coef_ and intercept_,
// so exports read _dual_coef_ and _intercept_ instead.
type SVC struct {
	Gamma          float64     `json:"gamma"`
	SupportVectors [][]float64 `json:"support_vectors"`
	NSupport       []int       `json:"n_support"`
	DualCoef       [][]float64 `json:"dual_coef"`
	Intercept      []float64   `json:"intercept"`
}

func (s *SVC) Name() string    { return "svm" }
func (s *SVC) NumClasses() int { return len(s.NSupport) }

func (s *SVC) NumFeatures() int {
	if len(s.SupportVectors) == 0 {
		return 0
	}
	return len(s.SupportVectors[0])
}

func (s *SVC) Validate() error {
	k := len(s.NSupport)
	if k < 2 {
		return errors.New("svm: need at least two classes")
	}
	if s.Gamma <= 0 {
		return errors.New("svm: gamma must be positive")
	}
	total := 0
	for _, n := range s.NSupport {
		if n < 0 {
			return errors.New("svm: negative support count")
		}
		total += n
	}
	if total != len(s.SupportVectors) {
		return fmt.Errorf("svm: n_support sums to %d, have %d support vectors", total, len(s.SupportVectors))
	}
	f := s.NumFeatures()
	if f == 0 {
		return errors.New("svm: no features")
	}
	for i, sv := range s.SupportVectors {
		if len(sv) != f {
			return fmt.Errorf("svm: support vector %d has %d features, want %d", i, len(sv), f)
		}
	}
	if len(s.DualCoef) != k-1 {
		return fmt.Errorf("svm: dual_coef has %d rows, want %d", len(s.DualCoef), k-1)
	}
	for i, row := range s.DualCoef {
		if len(row) != total {
			return fmt.Errorf("svm: dual_coef row %d has %d entries, want %d", i, len(row), total)
		}
	}
	if len(s.Intercept) != k*(k-1)/2 {
		return fmt.Errorf("svm: %d intercepts, want %d", len(s.Intercept), k*(k-1)/2)
	}
	return nil
}

func (s *SVC) votes(x []float64) []float64 {
	kernel := make([]float64, len(s.SupportVectors))
	for i, sv := range s.SupportVectors {
		var d float64
		for j, v := range sv {
			diff := v - x[j]
			d += diff * diff
		}
		kernel[i] = math.Exp(-s.Gamma * d)
	}

	k := len(s.NSupport)
	start := make([]int, k)
	for i := 1; i < k; i++ {
		start[i] = start[i-1] + s.NSupport[i-1]
	}

	votes := make([]float64, k)
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			sum := s.Intercept[p]
			for n := 0; n < s.NSupport[i]; n++ {
				sum += s.DualCoef[j-1][start[i]+n] * kernel[start[i]+n]
			}
			for n := 0; n < s.NSupport[j]; n++ {
				sum += s.DualCoef[i][start[j]+n] * kernel[start[j]+n]
			}
			if sum > 0 {
				votes[i]++
			} else {
				votes[j]++
			}
			p++
		}
	}
	return votes
}

func (s *SVC) Predict(x []float64) (int, error) {
	if err := checkFeatures(s.Name(), s.NumFeatures(), x); err != nil {
		return 0, err
	}
	return argmax(s.votes(x)), nil
}

// PredictProba returns the normalized one-vs-one vote share.
func (s *SVC) PredictProba(x []float64) ([]float64, error) {
	if err := checkFeatures(s.Name(), s.NumFeatures(), x); err != nil {
		return nil, err
	}
	votes := s.votes(x)
	pairs := float64(len(s.Intercept))
	for i := range votes {
		votes[i] /= pairs
	}
	return votes, nil
}
