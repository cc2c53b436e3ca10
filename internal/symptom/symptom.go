// Package symptom holds the symptom vocabulary and turns free-form symptom
// lists into the binary feature vectors the classifiers were trained on.
package symptom

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize maps a symptom token to its canonical identifier: NFKC, trimmed,
// lower-cased, spaces replaced by underscores.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

// DisplayName renders a canonical identifier for people, e.g. skin_rash -> Skin Rash.
func DisplayName(id string) string {
	// Casers are stateful, one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// Vocabulary is the ordered set of symptoms a model set was trained on.
// It is immutable once built and safe for concurrent use.
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from column names in training order.
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	v := &Vocabulary{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("vocabulary column %d is blank", i)
		}
		if _, dup := v.index[name]; dup {
			return nil, fmt.Errorf("duplicate vocabulary column %q", name)
		}
		v.names[i] = name
		v.index[name] = i
	}
	return v, nil
}

// LoadVocabulary reads a JSON array of column names.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return NewVocabulary(names)
}

// Len returns the number of feature columns.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Names returns a copy of the columns in training order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Index returns the column of a (not yet normalized) symptom token.
func (v *Vocabulary) Index(symptom string) (int, bool) {
	i, ok := v.index[Normalize(symptom)]
	return i, ok
}

// Vectorize returns a presence vector over the vocabulary. Unknown tokens
// are ignored and repeated tokens set the same slot once.
func (v *Vocabulary) Vectorize(symptoms []string) []float64 {
	vec := make([]float64, len(v.names))
	for _, s := range symptoms {
		if i, ok := v.Index(s); ok {
			vec[i] = 1
		}
	}
	return vec
}

// Unrecognized lists the normalized tokens that match no column, without
// repeats, in input order. Blank tokens are skipped.
func (v *Vocabulary) Unrecognized(symptoms []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range symptoms {
		id := Normalize(s)
		if id == "" {
			continue
		}
		if _, ok := v.index[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DisplayNames returns every column as a display name, sorted.
func (v *Vocabulary) DisplayNames() []string {
	out := make([]string, len(v.names))
	for i, name := range v.names {
		out[i] = DisplayName(name)
	}
	sort.Strings(out)
	return out
}
