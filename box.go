package meridian

import (
	"fmt"
	"math"
)

// Box is a closed axis-aligned hyper-rectangle [Min[d], Max[d]] per axis.
//
// A box with Min[d] > Max[d] on some axis is malformed: it contains nothing
// and intersects nothing. The zero-volume box around a single point is valid.
type Box struct {
	Min []float64
	Max []float64
}

// NewBox copies min and max into a Box.
//
// Returns ErrDimensionMismatch if the slices differ in length.
func NewBox(min, max []float64) (Box, error) {
	if len(min) != len(max) {
		return Box{}, fmt.Errorf("%w: min has %d axes, max has %d", ErrDimensionMismatch, len(min), len(max))
	}
	return Box{
		Min: append([]float64(nil), min...),
		Max: append([]float64(nil), max...),
	}, nil
}

// PointBox returns the degenerate box around a single point.
func PointBox(p []float64) Box {
	return Box{
		Min: append([]float64(nil), p...),
		Max: append([]float64(nil), p...),
	}
}

// EmptyBox returns the identity element for Union: min = +Inf, max = -Inf.
func EmptyBox(dim int) Box {
	b := Box{Min: make([]float64, dim), Max: make([]float64, dim)}
	for d := 0; d < dim; d++ {
		b.Min[d] = math.Inf(1)
		b.Max[d] = math.Inf(-1)
	}
	return b
}

// UnboundedBox covers the whole attribute space.
func UnboundedBox(dim int) Box {
	b := Box{Min: make([]float64, dim), Max: make([]float64, dim)}
	for d := 0; d < dim; d++ {
		b.Min[d] = math.Inf(-1)
		b.Max[d] = math.Inf(1)
	}
	return b
}

// Dimensions returns the number of axes.
func (b Box) Dimensions() int {
	return len(b.Min)
}

// Valid reports whether Min[d] <= Max[d] on every axis.
func (b Box) Valid() bool {
	if len(b.Min) != len(b.Max) {
		return false
	}
	for d := range b.Min {
		if !(b.Min[d] <= b.Max[d]) {
			return false
		}
	}
	return true
}

// Contains reports whether p lies inside the box, bounds included.
func (b Box) Contains(p []float64) bool {
	for d := range b.Min {
		if p[d] < b.Min[d] || p[d] > b.Max[d] {
			return false
		}
	}
	return true
}

// Intersects reports whether two boxes share at least one point.
// Malformed boxes never intersect.
func (b Box) Intersects(o Box) bool {
	for d := range b.Min {
		if b.Min[d] > b.Max[d] || o.Min[d] > o.Max[d] {
			return false
		}
		if b.Max[d] < o.Min[d] || o.Max[d] < b.Min[d] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether o lies entirely inside b.
func (b Box) ContainsBox(o Box) bool {
	for d := range b.Min {
		if o.Min[d] < b.Min[d] || o.Max[d] > b.Max[d] {
			return false
		}
	}
	return true
}

// Extend grows the box in place to cover p.
func (b *Box) Extend(p []float64) {
	for d := range b.Min {
		b.Min[d] = math.Min(b.Min[d], p[d])
		b.Max[d] = math.Max(b.Max[d], p[d])
	}
}

// Union returns the smallest box covering both inputs.
func (b Box) Union(o Box) Box {
	u := Box{Min: make([]float64, len(b.Min)), Max: make([]float64, len(b.Max))}
	for d := range b.Min {
		u.Min[d] = math.Min(b.Min[d], o.Min[d])
		u.Max[d] = math.Max(b.Max[d], o.Max[d])
	}
	return u
}

// Enlargement is the growth in summed edge length needed to cover p.
// Used by the R-tree least-enlargement placement policy.
func (b Box) Enlargement(p []float64) float64 {
	var grow float64
	for d := range b.Min {
		if b.Min[d] > b.Max[d] {
			// empty box
			continue
		}
		if p[d] < b.Min[d] {
			grow += b.Min[d] - p[d]
		} else if p[d] > b.Max[d] {
			grow += p[d] - b.Max[d]
		}
	}
	return grow
}

// Clone returns a deep copy.
func (b Box) Clone() Box {
	return Box{
		Min: append([]float64(nil), b.Min...),
		Max: append([]float64(nil), b.Max...),
	}
}
