package dataset

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Skufu/medipredict/internal/model"
	"github.com/Skufu/medipredict/internal/symptom"
)

// ClassScore is the per-class slice of an Evaluation.
type ClassScore struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation scores one classifier. Confusion[actual][predicted] counts rows.
type Evaluation struct {
	Model     string       `json:"model"`
	Accuracy  float64      `json:"accuracy"`
	Classes   []string     `json:"classes"`
	Confusion [][]int      `json:"confusion"`
	Scores    []ClassScore `json:"scores"`
}

// Matrix reorders the table's columns into vocabulary order. Every
// vocabulary symptom must be present; extra columns are dropped.
func (t *Training) Matrix(vocab *symptom.Vocabulary) ([][]float64, error) {
	src := make(map[string]int, len(t.Symptoms))
	for i, s := range t.Symptoms {
		src[s] = i
	}
	order := make([]int, vocab.Len())
	for i, name := range vocab.Names() {
		j, ok := src[name]
		if !ok {
			return nil, fmt.Errorf("training table lacks symptom column %q", name)
		}
		order[i] = j
	}

	out := make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		vec := make([]float64, len(order))
		for i, j := range order {
			vec[i] = row[j]
		}
		out[r] = vec
	}
	return out, nil
}

// Evaluate runs every classifier in a over the table.
func Evaluate(ctx context.Context, a *model.Artifacts, t *Training) ([]Evaluation, error) {
	x, err := t.Matrix(a.Vocabulary)
	if err != nil {
		return nil, err
	}
	y := make([]int, len(t.Labels))
	for i, label := range t.Labels {
		code, ok := a.Labels.Encode(label)
		if !ok {
			return nil, fmt.Errorf("row %d: label %q unknown to the label encoder", i+2, label)
		}
		y[i] = code
	}

	named := []struct {
		name string
		c    model.Classifier
	}{
		{"Random Forest", a.Forest},
		{"Naive Bayes", a.Bayes},
		{"SVM", a.SVM},
	}

	var out []Evaluation
	for _, m := range named {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := evaluate(m.name, m.c, a.Labels.Classes(), x, y)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func evaluate(name string, c model.Classifier, classes []string, x [][]float64, y []int) (Evaluation, error) {
	k := len(classes)
	confusion := make([][]int, k)
	for i := range confusion {
		confusion[i] = make([]int, k)
	}

	correct := 0
	for i, vec := range x {
		pred, err := c.Predict(vec)
		if err != nil {
			return Evaluation{}, fmt.Errorf("%s row %d: %w", name, i+2, err)
		}
		if pred < 0 || pred >= k {
			return Evaluation{}, fmt.Errorf("%s row %d: class %d out of range", name, i+2, pred)
		}
		confusion[y[i]][pred]++
		if pred == y[i] {
			correct++
		}
	}

	ev := Evaluation{Model: name, Classes: classes, Confusion: confusion}
	if len(x) > 0 {
		ev.Accuracy = float64(correct) / float64(len(x))
	}
	for i, class := range classes {
		var predicted, actual int
		for j := 0; j < k; j++ {
			predicted += confusion[j][i]
			actual += confusion[i][j]
		}
		s := ClassScore{Class: class, Support: actual}
		if predicted > 0 {
			s.Precision = float64(confusion[i][i]) / float64(predicted)
		}
		if actual > 0 {
			s.Recall = float64(confusion[i][i]) / float64(actual)
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		ev.Scores = append(ev.Scores, s)
	}
	return ev, nil
}

// WriteSummary prints the accuracy table.
func WriteSummary(w io.Writer, evals []Evaluation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tACCURACY")
	for _, ev := range evals {
		fmt.Fprintf(tw, "%s\t%.4f%%\n", ev.Model, ev.Accuracy*100)
	}
	return tw.Flush()
}

// WriteReport prints per-class precision, recall and F1 plus the confusion
// matrix for one evaluation.
func WriteReport(w io.Writer, ev Evaluation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "--- %s ---\n", ev.Model)
	fmt.Fprintln(tw, "CLASS\tPRECISION\tRECALL\tF1\tSUPPORT")
	for _, s := range ev.Scores {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\n", s.Class, s.Precision, s.Recall, s.F1, s.Support)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "actual \\ predicted\t%s\n", strings.Join(ev.Classes, "\t"))
	for i, row := range ev.Confusion {
		cells := make([]string, len(row))
		for j, n := range row {
			cells[j] = fmt.Sprint(n)
		}
		fmt.Fprintf(tw, "%s\t%s\n", ev.Classes[i], strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
