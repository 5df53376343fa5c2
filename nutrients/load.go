package nutrients

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"nutrivision/storage"
)

// KilojoulesToKilocalories is the factor applied to ENERC values.
const KilojoulesToKilocalories = 0.239

// Component codes of the reference component table.
const (
	CodeEnergy        = "ENERC"
	CodeProtein       = "PROT"
	CodeCarbohydrates = "CHOAVL"
	CodeFat           = "FAT"
	CodeFiber         = "FIBC"
)

// Load reads both reference tables and builds the index.
func Load(ctx context.Context, names, components storage.State, encoding string) (*Index, error) {
	nameBytes, err := names.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read food names: %w", err)
	}
	componentBytes, err := components.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read component values: %w", err)
	}

	nr, err := decodeReader(nameBytes, encoding)
	if err != nil {
		return nil, err
	}
	foods, err := ParseFoodNames(nr)
	if err != nil {
		return nil, fmt.Errorf("parse food names: %w", err)
	}

	cr, err := decodeReader(componentBytes, encoding)
	if err != nil {
		return nil, err
	}
	profiles, err := ParseComponentValues(cr)
	if err != nil {
		return nil, fmt.Errorf("parse component values: %w", err)
	}

	ix := NewIndex(foods, profiles)
	slog.Info("SETUP: Reference nutrient index loaded", "foods", ix.Len(), "profiles", len(profiles))
	return ix, nil
}

func decodeReader(b []byte, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf8", "utf-8":
		return bytes.NewReader(b), nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return transform.NewReader(bytes.NewReader(b), charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(bytes.NewReader(b), charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported reference encoding %q", encoding)
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// ParseFoodNames reads a FOODID;FOODNAME;... table. The header row is
// optional; without one the first two columns are used.
func ParseFoodNames(r io.Reader) ([]FoodRecord, error) {
	cr := newReader(r)
	idCol, nameCol := 0, 1
	var foods []FoodRecord

	for line := 0; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 && isHeader(row, "FOODID") {
			for i, col := range row {
				switch strings.ToUpper(strings.TrimSpace(col)) {
				case "FOODID":
					idCol = i
				case "FOODNAME":
					nameCol = i
				}
			}
			continue
		}
		if len(row) <= idCol || len(row) <= nameCol {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		name := strings.TrimSpace(row[nameCol])
		if id == "" || name == "" {
			continue
		}
		foods = append(foods, FoodRecord{ID: id, CanonicalName: name})
	}
	return foods, nil
}

// ParseComponentValues reads a FOODID;EUFDNAME;BESTLOC;... table into one
// profile per food id. Energy is converted from kJ to kcal.
func ParseComponentValues(r io.Reader) (map[string]NutrientProfile, error) {
	cr := newReader(r)
	profiles := map[string]NutrientProfile{}

	for line := 0; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 && isHeader(row, "FOODID") {
			continue
		}
		if len(row) < 3 {
			continue
		}
		id := strings.TrimSpace(row[0])
		code := strings.ToUpper(strings.TrimSpace(row[1]))
		value, ok := parseDecimal(row[2])
		if id == "" || !ok {
			continue
		}

		p := profiles[id]
		switch code {
		case CodeEnergy:
			kcal := math.Round(value*KilojoulesToKilocalories*100) / 100
			p.Calories = &kcal
		case CodeProtein:
			p.Protein = &value
		case CodeCarbohydrates:
			p.Carbohydrates = &value
		case CodeFat:
			p.Fat = &value
		case CodeFiber:
			p.Fiber = &value
		default:
			continue
		}
		profiles[id] = p
	}
	return profiles, nil
}

func isHeader(row []string, first string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff")), first)
}

func parseDecimal(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
