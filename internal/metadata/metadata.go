// Package metadata serves disease descriptions and precautions.
package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skufu/medipredict/internal/tabular"
)

// NoDescription is returned for diseases missing from the description table.
const NoDescription = "No description available."

// MaxPrecautions is the number of precaution columns in the source table.
const MaxPrecautions = 4

// Disease is one row of the combined metadata tables.
type Disease struct {
	Name        string   `json:"disease"`
	Description string   `json:"description"`
	Precautions []string `json:"precautions"`
}

// Store is a read-only lookup keyed by disease name. The zero value and a
// nil *Store answer every lookup with placeholders.
type Store struct {
	descriptions map[string]string
	precautions  map[string][]string
	order        []string
}

// Load reads both tables. A table that cannot be read is left empty and its
// error is returned alongside the partially filled store, so callers can
// keep serving placeholders.
func Load(descriptionsPath, precautionsPath string) (*Store, error) {
	s := &Store{}
	var errs []error

	if tbl, err := tabular.ReadFile(descriptionsPath); err != nil {
		errs = append(errs, fmt.Errorf("descriptions: %w", err))
	} else if err := s.AddDescriptions(tbl); err != nil {
		errs = append(errs, fmt.Errorf("descriptions: %w", err))
	}

	if tbl, err := tabular.ReadFile(precautionsPath); err != nil {
		errs = append(errs, fmt.Errorf("precautions: %w", err))
	} else if err := s.AddPrecautions(tbl); err != nil {
		errs = append(errs, fmt.Errorf("precautions: %w", err))
	}

	return s, errors.Join(errs...)
}

// AddDescriptions ingests a Disease/Description table. The first row for a
// disease wins.
func (s *Store) AddDescriptions(tbl *tabular.Table) error {
	cols, err := tbl.MustColumns("Disease", "Description")
	if err != nil {
		return err
	}
	if s.descriptions == nil {
		s.descriptions = make(map[string]string, len(tbl.Rows))
	}
	for _, row := range tbl.Rows {
		name := tabular.Cell(row, cols[0])
		if name == "" {
			continue
		}
		if _, ok := s.descriptions[name]; ok {
			continue
		}
		s.descriptions[name] = tabular.Cell(row, cols[1])
		s.order = append(s.order, name)
	}
	return nil
}

// AddPrecautions ingests a Disease/Precaution_1..4 table. Blank cells are
// dropped and the first row for a disease wins.
func (s *Store) AddPrecautions(tbl *tabular.Table) error {
	diseaseCol, ok := tbl.Column("Disease")
	if !ok {
		return errors.New(`missing column "Disease"`)
	}
	var cols []int
	for i := 1; i <= MaxPrecautions; i++ {
		if idx, ok := tbl.Column(fmt.Sprintf("Precaution_%d", i)); ok {
			cols = append(cols, idx)
		}
	}
	if s.precautions == nil {
		s.precautions = make(map[string][]string, len(tbl.Rows))
	}
	for _, row := range tbl.Rows {
		name := tabular.Cell(row, diseaseCol)
		if name == "" {
			continue
		}
		if _, ok := s.precautions[name]; ok {
			continue
		}
		list := make([]string, 0, len(cols))
		for _, c := range cols {
			if p := tabular.Cell(row, c); p != "" {
				list = append(list, p)
			}
		}
		s.precautions[name] = list
	}
	return nil
}

// Description returns the description of disease or NoDescription.
func (s *Store) Description(disease string) string {
	if s != nil {
		if d, ok := s.descriptions[strings.TrimSpace(disease)]; ok && d != "" {
			return d
		}
	}
	return NoDescription
}

// Precautions returns a copy of the precautions of disease, never nil.
func (s *Store) Precautions(disease string) []string {
	if s == nil {
		return []string{}
	}
	list := s.precautions[strings.TrimSpace(disease)]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// Diseases lists every described disease in table order.
func (s *Store) Diseases() []Disease {
	if s == nil {
		return nil
	}
	out := make([]Disease, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Disease{
			Name:        name,
			Description: s.Description(name),
			Precautions: s.Precautions(name),
		})
	}
	return out
}
