// Package recipes holds the read-only recipe reference table.
package recipes

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"nutrivision/storage"
)

// Record is one recipe of the reference table.
type Record struct {
	Name        string `json:"name"`
	Ingredients string `json:"ingredients"`
	Process     string `json:"process"`
}

// Table is loaded once and only read afterwards.
type Table struct {
	records []Record
	folded  []string
}

func NewTable(records []Record) *Table {
	t := &Table{
		records: make([]Record, 0, len(records)),
		folded:  make([]string, 0, len(records)),
	}
	for _, r := range records {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		t.records = append(t.records, r)
		t.folded = append(t.folded, strings.ToLower(name))
	}
	return t
}

// Load reads a name,ingredients,process CSV through the given state.
func Load(ctx context.Context, state storage.State) (*Table, error) {
	b, err := state.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	records, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse recipes: %w", err)
	}
	t := NewTable(records)
	slog.Info("SETUP: Recipe table loaded", "recipes", t.Len())
	return t, nil
}

// Parse reads recipe rows. The header must name the name, ingredients and
// process columns; other columns are ignored.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cols := map[string]int{"name": -1, "ingredients": -1, "process": -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := cols[key]; ok {
			cols[key] = i
		}
	}
	if cols["name"] < 0 {
		return nil, fmt.Errorf("missing name column in header %v", header)
	}

	field := func(row []string, key string) string {
		i := cols[key]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Record{
			Name:        field(row, "name"),
			Ingredients: field(row, "ingredients"),
			Process:     field(row, "process"),
		})
	}
	return out, nil
}

func (t *Table) Len() int { return len(t.records) }

// Lookup returns the records whose name contains term, case-insensitively,
// in table order.
func (t *Table) Lookup(term string) []Record {
	q := strings.ToLower(strings.TrimSpace(term))
	if q == "" {
		return nil
	}
	var out []Record
	for i, name := range t.folded {
		if strings.Contains(name, q) {
			out = append(out, t.records[i])
		}
	}
	return out
}

// LookupAll looks up each term in turn and returns the distinct matches in
// order of discovery.
func (t *Table) LookupAll(terms []string) []Record {
	seen := map[int]bool{}
	var out []Record
	for _, term := range terms {
		q := strings.ToLower(strings.TrimSpace(term))
		if q == "" {
			continue
		}
		for i, name := range t.folded {
			if seen[i] || !strings.Contains(name, q) {
				continue
			}
			seen[i] = true
			out = append(out, t.records[i])
		}
	}
	return out
}
