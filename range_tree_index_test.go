package meridian

import (
	"errors"
	"testing"
)

// TestNewRangeTreeIndex tests axis validation
func TestNewRangeTreeIndex(t *testing.T) {
	store, _ := NewStore(3)

	tests := []struct {
		name      string
		primary   int
		secondary int
		wantErr   bool
	}{
		{name: "default axes", primary: 0, secondary: 1},
		{name: "same axis", primary: 2, secondary: 2},
		{name: "negative primary", primary: -1, secondary: 1, wantErr: true},
		{name: "secondary out of range", primary: 0, secondary: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := NewRangeTreeIndex(store, tt.primary, tt.secondary)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAxis) {
					t.Errorf("NewRangeTreeIndex() error = %v, want ErrInvalidAxis", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRangeTreeIndex() unexpected error: %v", err)
			}
			p, s := idx.Axes()
			if p != tt.primary || s != tt.secondary {
				t.Errorf("Axes() = (%d, %d), want (%d, %d)", p, s, tt.primary, tt.secondary)
			}
		})
	}

	if p, s := DefaultRangeTreeConfig(1); p != 0 || s != 0 {
		t.Errorf("DefaultRangeTreeConfig(1) = (%d, %d), want (0, 0)", p, s)
	}
}

// TestRangeTreeIndexSecondaryRange tests the root auxiliary collection
func TestRangeTreeIndexSecondaryRange(t *testing.T) {
	store, byTitle := scenario(t)
	idx, _ := NewRangeTreeIndex(store, 0, 1)
	if err := idx.Build(store.Records()); err != nil {
		t.Fatal(err)
	}

	// popularity: E=2 C=5 A=10 B=20 D=40
	got := idx.SecondaryRange(5, 20)
	want := []string{"C", "A", "B"}
	if len(got) != len(want) {
		t.Fatalf("SecondaryRange() returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Title() != want[i] {
			t.Errorf("SecondaryRange()[%d] = %s, want %s", i, got[i].Title(), want[i])
		}
	}

	if err := idx.Delete(byTitle["A"].ID()); err != nil {
		t.Fatal(err)
	}
	if got := idx.SecondaryRange(5, 20); len(got) != 2 {
		t.Errorf("SecondaryRange() after delete returned %d records, want 2", len(got))
	}

	if got := idx.SecondaryRange(20, 5); got != nil {
		t.Errorf("SecondaryRange() with lo > hi = %v, want nil", got)
	}
}

// TestRangeTreeIndexInsertMaintainsAux tests that inserted records reach
// every ancestor's auxiliary collection, ties ordered by id
func TestRangeTreeIndexInsertMaintainsAux(t *testing.T) {
	store, byTitle := scenario(t)
	idx, _ := NewRangeTreeIndex(store, 0, 1)
	if err := idx.Build(store.Records()); err != nil {
		t.Fatal(err)
	}

	newID, err := idx.Update(byTitle["D"].ID(), 1, 10)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got := idx.SecondaryRange(10, 10)
	if len(got) != 2 {
		t.Fatalf("SecondaryRange(10, 10) returned %d records, want 2", len(got))
	}
	if got[0].ID() != byTitle["A"].ID() || got[1].ID() != newID {
		t.Errorf("SecondaryRange(10, 10) = [%d %d], want [%d %d]",
			got[0].ID(), got[1].ID(), byTitle["A"].ID(), newID)
	}

	// the new version is reachable through the primary tree as well
	box := Box{Min: []float64{4000, 5}, Max: []float64{6000, 15}}
	if res := idx.RangeQuery(box); len(res) != 1 || res[0].ID() != newID {
		t.Errorf("RangeQuery() = %v, want the new version of D", res)
	}
}

// TestRangeTreeIndexPrimaryPruning tests the three primary-axis cases with
// every record sharing a primary value
func TestRangeTreeIndexPrimaryPruning(t *testing.T) {
	store, _ := NewStore(2)
	drafts := make([]RecordDraft, 0, 20)
	for i := 0; i < 20; i++ {
		drafts = append(drafts, RecordDraft{Title: "r", Vector: []float64{float64(i / 5), float64(i)}})
	}
	records, _ := store.Load(drafts)

	idx, _ := NewRangeTreeIndex(store, 0, 1)
	if err := idx.Build(records); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		box  Box
		want int
	}{
		{name: "one primary value", box: Box{Min: []float64{2, 0}, Max: []float64{2, 100}}, want: 5},
		{name: "primary below data", box: Box{Min: []float64{-5, 0}, Max: []float64{-1, 100}}, want: 0},
		{name: "primary above data", box: Box{Min: []float64{4, 0}, Max: []float64{9, 100}}, want: 0},
		{name: "secondary cut", box: Box{Min: []float64{0, 3}, Max: []float64{3, 6}}, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.RangeQuery(tt.box); len(got) != tt.want {
				t.Errorf("RangeQuery() returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}
