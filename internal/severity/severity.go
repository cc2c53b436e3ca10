// Package severity scores symptom lists against per-symptom weights and
// buckets the score into a risk level.
package severity

import (
	"fmt"
	"strconv"

	"github.com/Skufu/medipredict/internal/symptom"
	"github.com/Skufu/medipredict/internal/tabular"
)

type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
)

// Band lower bounds, inclusive.
const (
	HighThreshold     = 13.0
	ModerateThreshold = 7.0
)

// Risk is a level plus the display category the UI colors it with.
type Risk struct {
	Level    Level  `json:"level"`
	Category string `json:"category"`
}

// Classify maps a severity score to its risk band, checked high to low.
func Classify(score float64) Risk {
	switch {
	case score >= HighThreshold:
		return Risk{Level: LevelHigh, Category: "danger"}
	case score >= ModerateThreshold:
		return Risk{Level: LevelModerate, Category: "warning"}
	default:
		return Risk{Level: LevelLow, Category: "success"}
	}
}

// Table maps canonical symptom ids to weights. A nil *Table scores every
// symptom as 0.
type Table struct {
	weights map[string]float64
}

// NewTable normalizes the keys of weights. Later duplicates win.
func NewTable(weights map[string]float64) *Table {
	t := &Table{weights: make(map[string]float64, len(weights))}
	for k, w := range weights {
		t.weights[symptom.Normalize(k)] = w
	}
	return t
}

// LoadTable reads a CSV with Symptom and weight columns.
func LoadTable(path string) (*Table, error) {
	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromTabular(tbl)
}

// FromTabular builds a table from parsed CSV rows.
func FromTabular(tbl *tabular.Table) (*Table, error) {
	cols, err := tbl.MustColumns("Symptom", "weight")
	if err != nil {
		return nil, err
	}
	t := &Table{weights: make(map[string]float64, len(tbl.Rows))}
	for i, row := range tbl.Rows {
		name := tabular.Cell(row, cols[0])
		if name == "" {
			continue
		}
		w, err := strconv.ParseFloat(tabular.Cell(row, cols[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: weight for %q: %w", i+2, name, err)
		}
		if w < 0 {
			return nil, fmt.Errorf("row %d: negative weight for %q", i+2, name)
		}
		t.weights[symptom.Normalize(name)] = w
	}
	return t, nil
}

// Len returns the number of weighted symptoms.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.weights)
}

// Weight returns the weight of one symptom token, 0 when unknown.
func (t *Table) Weight(s string) float64 {
	if t == nil {
		return 0
	}
	return t.weights[symptom.Normalize(s)]
}

// Score sums the weight of every entry in symptoms. Repeated entries are
// counted each time.
func (t *Table) Score(symptoms []string) float64 {
	var total float64
	for _, s := range symptoms {
		total += t.Weight(s)
	}
	return total
}
