// Package loader reads records from external sources into drafts for a
// meridian.Store.
//
// Two sources are supported: semicolon-separated text files (CSVSource) and
// SQLite tables (SQLiteSource). Both apply the same row rules:
//   - an empty required attribute drops the row
//   - an empty optional attribute reads as 0
//   - decimals may use a comma separator ("12,5")
//   - rows whose first attribute is not above MinFirst are dropped
//   - an empty title becomes "Unknown"
//
// Each kept row is signed with a MinHasher over its text column.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wizenheimer/meridian"
)

// ErrMalformedRow marks a row that was dropped.
var ErrMalformedRow = errors.New("malformed row")

// UnknownTitle replaces empty titles.
const UnknownTitle = "Unknown"

// Attribute maps one attribute axis to a source column.
// Column is used by CSVSource, Name by SQLiteSource.
type Attribute struct {
	Name     string
	Column   int
	Required bool
}

// Stats counts what a load did with the rows it saw.
type Stats struct {
	Rows    int // data rows read, header excluded
	Loaded  int
	Skipped int // malformed or filtered out
}

// Source produces record drafts.
type Source interface {
	Load(ctx context.Context) ([]meridian.RecordDraft, Stats, error)
}

// rowRules holds the filtering shared by every source.
type rowRules struct {
	attributes []Attribute
	minFirst   *float64
	limit      int
	signer     *meridian.MinHasher
}

func (r rowRules) validate() error {
	if len(r.attributes) == 0 {
		return fmt.Errorf("at least one attribute is required")
	}
	if r.signer == nil {
		return fmt.Errorf("a signer is required")
	}
	return nil
}

// draft converts raw field values into a draft. values are in attribute
// order; an absent field is passed as "".
func (r rowRules) draft(title, text string, values []string) (meridian.RecordDraft, error) {
	vector := make([]float64, len(r.attributes))
	for i, attr := range r.attributes {
		v, ok, err := ParseDecimal(values[i])
		if err != nil {
			return meridian.RecordDraft{}, fmt.Errorf("%w: %s: %v", ErrMalformedRow, attr.Name, err)
		}
		if !ok && attr.Required {
			return meridian.RecordDraft{}, fmt.Errorf("%w: %s is empty", ErrMalformedRow, attr.Name)
		}
		vector[i] = v
	}
	if r.minFirst != nil && !(vector[0] > *r.minFirst) {
		return meridian.RecordDraft{}, fmt.Errorf("%w: %s %v not above %v", ErrMalformedRow, r.attributes[0].Name, vector[0], *r.minFirst)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = UnknownTitle
	}
	return meridian.RecordDraft{
		Title:     title,
		Vector:    vector,
		Signature: r.signer.Sign(text),
	}, nil
}

// full reports whether the row limit is reached.
func (r rowRules) full(loaded int) bool {
	return r.limit > 0 && loaded >= r.limit
}

// ParseDecimal parses a number written with either '.' or ',' as the
// decimal separator. When both appear, the last one is the decimal
// separator and the other groups thousands ("1.234,5" and "1,234.5").
//
// The boolean is false for an empty field. Non-finite values are errors.
func ParseDecimal(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}

	comma, dot := strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("non-finite value %q", s)
	}
	return v, true, nil
}
