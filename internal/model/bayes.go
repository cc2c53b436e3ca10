package model

import (
	"errors"
	"fmt"
	"math"
)

// GaussianNB is a Gaussian naive Bayes classifier. Var already includes the
// smoothing term added at fit time.
type GaussianNB struct {
	ClassPrior []float64   `json:"class_prior"`
	Theta      [][]float64 `json:"theta"`
	Var        [][]float64 `json:"var"`
}

func (g *GaussianNB) Name() string    { return "naive_bayes" }
func (g *GaussianNB) NumClasses() int { return len(g.ClassPrior) }

func (g *GaussianNB) NumFeatures() int {
	if len(g.Theta) == 0 {
		return 0
	}
	return len(g.Theta[0])
}

func (g *GaussianNB) Validate() error {
	k := len(g.ClassPrior)
	if k == 0 {
		return errors.New("naive_bayes: no classes")
	}
	if len(g.Theta) != k || len(g.Var) != k {
		return fmt.Errorf("naive_bayes: theta/var rows = %d/%d, want %d", len(g.Theta), len(g.Var), k)
	}
	f := g.NumFeatures()
	if f == 0 {
		return errors.New("naive_bayes: no features")
	}
	for c := 0; c < k; c++ {
		if len(g.Theta[c]) != f || len(g.Var[c]) != f {
			return fmt.Errorf("naive_bayes: class %d has ragged parameters", c)
		}
		if g.ClassPrior[c] <= 0 {
			return fmt.Errorf("naive_bayes: class %d prior must be positive", c)
		}
		for j, v := range g.Var[c] {
			if v <= 0 {
				return fmt.Errorf("naive_bayes: class %d feature %d variance must be positive", c, j)
			}
		}
	}
	return nil
}

func (g *GaussianNB) jointLogLikelihood(x []float64) []float64 {
	jll := make([]float64, len(g.ClassPrior))
	for c := range g.ClassPrior {
		sum := math.Log(g.ClassPrior[c])
		for j, xj := range x {
			v := g.Var[c][j]
			d := xj - g.Theta[c][j]
			sum -= 0.5 * math.Log(2*math.Pi*v)
			sum -= 0.5 * d * d / v
		}
		jll[c] = sum
	}
	return jll
}

func (g *GaussianNB) Predict(x []float64) (int, error) {
	if err := checkFeatures(g.Name(), g.NumFeatures(), x); err != nil {
		return 0, err
	}
	return argmax(g.jointLogLikelihood(x)), nil
}

func (g *GaussianNB) PredictProba(x []float64) ([]float64, error) {
	if err := checkFeatures(g.Name(), g.NumFeatures(), x); err != nil {
		return nil, err
	}
	jll := g.jointLogLikelihood(x)
	top := jll[argmax(jll)]
	var total float64
	for _, v := range jll {
		total += math.Exp(v - top)
	}
	logNorm := top + math.Log(total)
	proba := make([]float64, len(jll))
	for c, v := range jll {
		proba[c] = math.Exp(v - logNorm)
	}
	return proba, nil
}
