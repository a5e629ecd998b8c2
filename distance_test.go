package meridian

import (
	"errors"
	"math"
	"testing"
)

// TestNewDistance tests the distance factory
func TestNewDistance(t *testing.T) {
	tests := []struct {
		kind    DistanceKind
		wantErr bool
	}{
		{kind: Euclidean},
		{kind: L2Squared},
		{kind: Manhattan},
		{kind: "cosine", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			d, err := NewDistance(tt.kind)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownDistanceKind) {
					t.Errorf("NewDistance(%q) error = %v, want ErrUnknownDistanceKind", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDistance(%q) unexpected error: %v", tt.kind, err)
			}
			if d.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", d.Kind(), tt.kind)
			}
		})
	}
}

// TestDistanceCalculate tests each metric on a 3-4-5 triangle
func TestDistanceCalculate(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{4, 6}

	tests := []struct {
		kind DistanceKind
		want float64
	}{
		{kind: Euclidean, want: 5},
		{kind: L2Squared, want: 25},
		{kind: Manhattan, want: 7},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			d, _ := NewDistance(tt.kind)
			if got := d.Calculate(a, b); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Calculate() = %v, want %v", got, tt.want)
			}
			if got := d.Calculate(b, a); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Calculate() is not symmetric: %v", got)
			}
			if got := d.Calculate(a, a); got != 0 {
				t.Errorf("Calculate(a, a) = %v, want 0", got)
			}
		})
	}
}

// TestScaledDistance tests per-axis scaling
func TestScaledDistance(t *testing.T) {
	d, err := NewScaledDistance(Euclidean, []float64{1e6})
	if err != nil {
		t.Fatalf("NewScaledDistance() error: %v", err)
	}

	// axis 1 is beyond the scales and stays as is
	got := d.Calculate([]float64{3e6, 0}, []float64{0, 4})
	if math.Abs(got-5) > 1e-12 {
		t.Errorf("Calculate() = %v, want 5", got)
	}
	if d.Kind() != Euclidean {
		t.Errorf("Kind() = %v, want %v", d.Kind(), Euclidean)
	}

	invalid := [][]float64{
		{0},
		{-1},
		{math.Inf(1)},
		{math.NaN()},
	}
	for _, scales := range invalid {
		if _, err := NewScaledDistance(Euclidean, scales); !errors.Is(err, ErrInvalidScale) {
			t.Errorf("NewScaledDistance(%v) error = %v, want ErrInvalidScale", scales, err)
		}
	}

	if _, err := NewScaledDistance("hamming", []float64{1}); !errors.Is(err, ErrUnknownDistanceKind) {
		t.Errorf("NewScaledDistance(hamming) error = %v, want ErrUnknownDistanceKind", err)
	}
}
