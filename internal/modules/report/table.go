package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Table is a CSV file loaded with its header row
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// LoadTable reads a CSV file whose first row is the header.
// An empty file yields an empty table.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &Table{index: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, name := range header {
		t.index[strings.TrimSpace(name)] = i
	}
	return t, nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Strings returns a column as raw strings
func (t *Table) Strings(name string) ([]string, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}

	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// Floats returns a column parsed as numbers. Blank cells (nulls) become NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	raw, err := t.Strings(name)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
