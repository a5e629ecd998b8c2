package meridian

import "testing"

// TestSanitizeK tests normalization of result limits
func TestSanitizeK(t *testing.T) {
	tests := []struct {
		k, max, want int
	}{
		{k: 3, max: 10, want: 3},
		{k: 0, max: 10, want: 10},
		{k: -1, max: 10, want: 10},
		{k: 20, max: 10, want: 10},
		{k: 5, max: 0, want: 0},
	}
	for _, tt := range tests {
		if got := sanitizeK(tt.k, tt.max); got != tt.want {
			t.Errorf("sanitizeK(%d, %d) = %d, want %d", tt.k, tt.max, got, tt.want)
		}
	}
}

// TestClampK tests clamping k to the candidate count
func TestClampK(t *testing.T) {
	tests := []struct {
		k, max, want int
	}{
		{k: 3, max: 10, want: 3},
		{k: 0, max: 10, want: 0},
		{k: -4, max: 10, want: 0},
		{k: 20, max: 10, want: 10},
	}
	for _, tt := range tests {
		if got := clampK(tt.k, tt.max); got != tt.want {
			t.Errorf("clampK(%d, %d) = %d, want %d", tt.k, tt.max, got, tt.want)
		}
	}
}

// TestAutocut tests cut points of distance sequences
func TestAutocut(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		cutOff int
		want   int
	}{
		{name: "too short", values: []float64{1, 9}, cutOff: 1, want: 2},
		{name: "flat", values: []float64{2, 2, 2, 2}, cutOff: 1, want: 4},
		{name: "gap after three", values: []float64{1, 1.1, 1.2, 50, 51}, cutOff: 1, want: 3},
		{name: "linear", values: []float64{1, 2, 3, 4, 5}, cutOff: 1, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Autocut(tt.values, tt.cutOff); got != tt.want {
				t.Errorf("Autocut() = %d, want %d", got, tt.want)
			}
		})
	}
}
