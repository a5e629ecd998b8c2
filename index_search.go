package meridian

import (
	"fmt"
	"math"
)

// RangeSearch encapsulates the search context for a spatial index
type RangeSearch interface {
	// WithMin sets the lower bound on every axis
	WithMin(min ...float64) RangeSearch

	// WithMax sets the upper bound on every axis
	WithMax(max ...float64) RangeSearch

	// WithBox sets both bounds at once
	WithBox(box Box) RangeSearch

	// WithFilter restricts results to the ids in filter (optional)
	WithFilter(filter *RecordFilter) RangeSearch

	// WithLimit caps the number of results; <= 0 means no cap
	WithLimit(limit int) RangeSearch

	// Execute the search and return the matching live records
	Execute() ([]*Record, error)
}

// Compile-time check to ensure rangeSearch implements RangeSearch
var _ RangeSearch = (*rangeSearch)(nil)

// rangeSearch is shared by every index kind; the structure-specific work
// happens in the index's RangeQuery.
type rangeSearch struct {
	index  SpatialIndex
	min    []float64
	max    []float64
	filter *RecordFilter
	limit  int
}

func newRangeSearch(index SpatialIndex) *rangeSearch {
	return &rangeSearch{index: index}
}

func (s *rangeSearch) WithMin(min ...float64) RangeSearch {
	s.min = append([]float64(nil), min...)
	return s
}

func (s *rangeSearch) WithMax(max ...float64) RangeSearch {
	s.max = append([]float64(nil), max...)
	return s
}

func (s *rangeSearch) WithBox(box Box) RangeSearch {
	s.min = append([]float64(nil), box.Min...)
	s.max = append([]float64(nil), box.Max...)
	return s
}

func (s *rangeSearch) WithFilter(filter *RecordFilter) RangeSearch {
	s.filter = filter
	return s
}

func (s *rangeSearch) WithLimit(limit int) RangeSearch {
	s.limit = limit
	return s
}

// Execute validates the bounds and runs the query.
//
// A missing bound is unbounded on every axis. Bounds with the wrong number of
// axes are an error; bounds with min > max on some axis are not, they simply
// match nothing.
func (s *rangeSearch) Execute() ([]*Record, error) {
	dim := s.index.Dimensions()

	lo, err := s.bound(s.min, dim, math.Inf(-1))
	if err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	hi, err := s.bound(s.max, dim, math.Inf(1))
	if err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}

	results := s.index.RangeQuery(Box{Min: lo, Max: hi})

	if s.filter != nil {
		filtered := results[:0]
		for _, r := range results {
			if s.filter.ShouldSkip(r.ID()) {
				continue
			}
			filtered = append(filtered, r)
		}
		results = filtered
	}

	return limitRecords(results, s.limit), nil
}

func (s *rangeSearch) bound(values []float64, dim int, fill float64) ([]float64, error) {
	if values == nil {
		out := make([]float64, dim)
		for d := range out {
			out[d] = fill
		}
		return out, nil
	}
	if len(values) != dim {
		return nil, fmt.Errorf("%w: expected %d axes, got %d", ErrDimensionMismatch, dim, len(values))
	}
	return values, nil
}
