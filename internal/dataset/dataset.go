// Package dataset converts the raw disease/symptom table into the binary
// training table and scores classifiers against it.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/Skufu/medipredict/internal/symptom"
	"github.com/Skufu/medipredict/internal/tabular"
)

// LabelColumn holds the disease name in the training table.
const LabelColumn = "prognosis"

// Training is a binary symptom matrix with one label per row.
type Training struct {
	Symptoms []string
	Rows     [][]float64
	Labels   []string
}

// Preprocess builds a Training table from the raw layout: a Disease column
// followed by Symptom_1..N columns holding symptom names. Symptom names are
// normalized and the columns sorted.
func Preprocess(raw *tabular.Table) (*Training, error) {
	diseaseCol, ok := raw.Column("Disease")
	if !ok {
		return nil, fmt.Errorf("missing column %q", "Disease")
	}

	seen := make(map[string]struct{})
	for _, row := range raw.Rows {
		for col := range raw.Header {
			if col == diseaseCol {
				continue
			}
			if id := symptom.Normalize(tabular.Cell(row, col)); id != "" {
				seen[id] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for id := range seen {
		names = append(names, id)
	}
	sort.Strings(names)

	vocab, err := symptom.NewVocabulary(names)
	if err != nil {
		return nil, err
	}

	t := &Training{Symptoms: names}
	for i, row := range raw.Rows {
		disease := tabular.Cell(row, diseaseCol)
		if disease == "" {
			return nil, fmt.Errorf("row %d: empty disease", i+2)
		}
		var tokens []string
		for col := range row {
			if col != diseaseCol {
				tokens = append(tokens, row[col])
			}
		}
		t.Rows = append(t.Rows, vocab.Vectorize(tokens))
		t.Labels = append(t.Labels, disease)
	}
	return t, nil
}

// PreprocessFile reads a raw table from path.
func PreprocessFile(path string) (*Training, error) {
	raw, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Preprocess(raw)
}

// FromTabular parses a training table: one 0/1 column per symptom plus
// the prognosis column.
func FromTabular(tbl *tabular.Table) (*Training, error) {
	labelCol, ok := tbl.Column(LabelColumn)
	if !ok {
		return nil, fmt.Errorf("missing column %q", LabelColumn)
	}

	t := &Training{}
	var cols []int
	for i, h := range tbl.Header {
		// Exported frames sometimes carry an unnamed trailing column.
		if i == labelCol || h == "" {
			continue
		}
		t.Symptoms = append(t.Symptoms, symptom.Normalize(h))
		cols = append(cols, i)
	}

	for i, row := range tbl.Rows {
		label := tabular.Cell(row, labelCol)
		if label == "" {
			return nil, fmt.Errorf("row %d: empty %s", i+2, LabelColumn)
		}
		vec := make([]float64, len(cols))
		for j, col := range cols {
			cell := tabular.Cell(row, col)
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+2, tbl.Header[col], err)
			}
			vec[j] = v
		}
		t.Rows = append(t.Rows, vec)
		t.Labels = append(t.Labels, label)
	}
	return t, nil
}

// LoadTraining reads a training table from path.
func LoadTraining(path string) (*Training, error) {
	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromTabular(tbl)
}

// WriteCSV writes the table with the prognosis column last.
func (t *Training) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, t.Symptoms...), LabelColumn)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, row := range t.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rec[len(rec)-1] = t.Labels[i]
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path.
func (t *Training) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
