// Package tabular reads the CSV tables shipped alongside the models.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a header plus rows of raw cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadFile opens and parses a CSV file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

// Read parses CSV from r. Rows may be ragged; missing cells read as "".
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Column returns the index of a header, compared case-insensitively.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Header {
		if strings.EqualFold(h, name) {
			return i, true
		}
	}
	return -1, false
}

// MustColumns resolves several headers at once.
func (t *Table) MustColumns(names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, name := range names {
		idx, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		out[i] = idx
	}
	return out, nil
}

// Cell returns the trimmed cell at col, or "" when the row is short.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
