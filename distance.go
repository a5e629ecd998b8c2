package meridian

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownDistanceKind is returned when an unknown distance kind is provided to NewDistance.
var ErrUnknownDistanceKind = errors.New("unknown distance kind")

// ErrInvalidScale is returned when a per-axis scale is zero, negative or not finite.
var ErrInvalidScale = errors.New("invalid axis scale")

// DistanceKind represents the metric used to compare attribute vectors.
// - Euclidean (L2): straight-line distance, what the kNN ranker reports
// - L2Squared: same ordering without the square root
// - Manhattan (L1): sum of absolute differences
type DistanceKind string

const (
	// Euclidean (L2) distance measures the straight-line distance between two points.
	// Formula: sqrt(sum((a[i] - b[i])^2))
	Euclidean DistanceKind = "l2"

	// L2Squared measures the squared straight-line distance.
	// Formula: sum((a[i] - b[i])^2)
	L2Squared DistanceKind = "l2_squared"

	// Manhattan (L1) distance sums the absolute per-axis differences.
	// Formula: sum(|a[i] - b[i]|)
	Manhattan DistanceKind = "l1"
)

// Singleton instances of distance strategies.
// These are stateless and can be safely reused.
var (
	euclideanDistanceImpl = euclidean{}
	l2SquaredDistanceImpl = l2Squared{}
	manhattanDistanceImpl = manhattan{}
)

// Distance is the interface for computing distances between attribute vectors.
type Distance interface {
	// Calculate computes the distance between two vectors a and b.
	// The vectors must have the same dimensionality.
	// Lower values mean closer.
	Calculate(a, b []float64) float64

	// Kind returns the metric name
	Kind() DistanceKind
}

// NewDistance returns a singleton Distance implementation for the specified metric type.
// Returns ErrUnknownDistanceKind if the distance kind is not recognized.
//
// Example:
//
//	dist, err := NewDistance(Euclidean)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := dist.Calculate([]float64{1, 2}, []float64{4, 6}) // 5
func NewDistance(t DistanceKind) (Distance, error) {
	switch t {
	case Euclidean:
		return euclideanDistanceImpl, nil
	case L2Squared:
		return l2SquaredDistanceImpl, nil
	case Manhattan:
		return manhattanDistanceImpl, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistanceKind, t)
	}
}

// euclidean implements the Distance interface using Euclidean (L2) distance.
type euclidean struct{}

// Calculate computes the Euclidean (L2) distance between two vectors.
// Formula: sqrt(sum((a[i] - b[i])^2))
func (e euclidean) Calculate(a, b []float64) float64 {
	return math.Sqrt(l2SquaredDistanceImpl.Calculate(a, b))
}

func (e euclidean) Kind() DistanceKind {
	return Euclidean
}

// l2Squared implements the Distance interface using squared Euclidean distance.
type l2Squared struct{}

// Calculate computes the squared Euclidean distance between two vectors.
func (l l2Squared) Calculate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func (l l2Squared) Kind() DistanceKind {
	return L2Squared
}

// manhattan implements the Distance interface using L1 distance.
type manhattan struct{}

// Calculate computes the sum of absolute differences.
func (m manhattan) Calculate(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

func (m manhattan) Kind() DistanceKind {
	return Manhattan
}

// scaledDistance divides each axis by a fixed scale before delegating.
//
// Attributes live on very different magnitudes (a budget in the millions next
// to a popularity around ten), so without scaling one axis decides every
// ranking.
type scaledDistance struct {
	base   Distance
	scales []float64
}

// NewScaledDistance wraps base so that axis i is divided by scales[i] before
// comparison. A scale of 1 leaves the axis unchanged.
//
// Returns ErrInvalidScale if any scale is zero, negative or not finite.
//
// Example:
//
//	// budget, popularity, runtime
//	dist, _ := NewScaledDistance(Euclidean, []float64{1e6, 1, 1})
func NewScaledDistance(kind DistanceKind, scales []float64) (Distance, error) {
	base, err := NewDistance(kind)
	if err != nil {
		return nil, err
	}
	for i, s := range scales {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: axis %d has scale %v", ErrInvalidScale, i, s)
		}
	}
	return &scaledDistance{
		base:   base,
		scales: append([]float64(nil), scales...),
	}, nil
}

// Calculate scales both vectors and applies the base metric.
// Axes beyond len(scales) are left unscaled.
func (s *scaledDistance) Calculate(a, b []float64) float64 {
	return s.base.Calculate(s.Scale(a), s.Scale(b))
}

// Scale returns a scaled copy of v.
func (s *scaledDistance) Scale(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i < len(s.scales) {
			out[i] = v[i] / s.scales[i]
		} else {
			out[i] = v[i]
		}
	}
	return out
}

func (s *scaledDistance) Kind() DistanceKind {
	return s.base.Kind()
}
