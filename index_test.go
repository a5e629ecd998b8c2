package meridian

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseSpatialIndexKind tests index kind name parsing
func TestParseSpatialIndexKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SpatialIndexKind
		wantErr bool
	}{
		{name: "kdtree", input: "kdtree", want: KDTreeIndexKind},
		{name: "case insensitive", input: "RTree", want: RTreeIndexKind},
		{name: "hypercube", input: "hypercube", want: HypercubeIndexKind},
		{name: "range tree", input: "rangetree", want: RangeTreeIndexKind},
		{name: "scan", input: "scan", want: ScanIndexKind},
		{name: "unknown", input: "quadtree", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpatialIndexKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNewSpatialIndex tests construction of every index kind with default tuning
func TestNewSpatialIndex(t *testing.T) {
	store, err := NewStore(3)
	require.NoError(t, err)

	for _, kind := range SpatialIndexKinds() {
		t.Run(string(kind), func(t *testing.T) {
			idx, err := NewSpatialIndex(kind, store)
			require.NoError(t, err)
			assert.Equal(t, kind, idx.Kind())
			assert.Equal(t, 3, idx.Dimensions())
			assert.Equal(t, 0, idx.Len())
		})
	}

	_, err = NewSpatialIndex("nope", store)
	assert.Error(t, err)

	_, err = NewKDTreeIndex(nil)
	assert.Error(t, err)
}

// TestRangeQuery_Scenario tests range queries over the five-record fixture on every index
func TestRangeQuery_Scenario(t *testing.T) {
	store, byTitle := scenario(t)

	tests := []struct {
		name string
		min  []float64
		max  []float64
		want []string
	}{
		{
			// C(300,5) sits on the closed budget bound
			name: "budget 50..300 popularity 2..25",
			min:  []float64{50, 2},
			max:  []float64{300, 25},
			want: []string{"A", "B", "C", "E"},
		},
		{
			name: "budget 50..250 popularity 2..25",
			min:  []float64{50, 2},
			max:  []float64{250, 25},
			want: []string{"A", "B", "E"},
		},
		{
			name: "single point",
			min:  []float64{5000, 40},
			max:  []float64{5000, 40},
			want: []string{"D"},
		},
		{
			name: "whole domain",
			min:  []float64{0, 0},
			max:  []float64{1e9, 1e9},
			want: []string{"A", "B", "C", "D", "E"},
		},
		{
			name: "nothing there",
			min:  []float64{400, 0},
			max:  []float64{4000, 100},
			want: []string{},
		},
	}

	for _, idx := range append(defaultIndexes(t, store), smallIndexes(t, store)...) {
		require.NoError(t, idx.Build(store.Records()))
		for _, tt := range tests {
			t.Run(indexName(idx)+"/"+tt.name, func(t *testing.T) {
				box, err := NewBox(tt.min, tt.max)
				require.NoError(t, err)
				assert.Equal(t, tt.want, titles(idx.RangeQuery(box)))
			})
		}
	}

	// the fixture is what it claims to be
	assert.Equal(t, []float64{300, 5}, byTitle["C"].Vector())
}

// TestRangeQuery_MatchesScan tests that every index agrees with a brute-force scan
func TestRangeQuery_MatchesScan(t *testing.T) {
	for _, dim := range []int{2, 3, 5} {
		store := randomStore(t, dim, 400, int64(dim))
		indexes := append(defaultIndexes(t, store), smallIndexes(t, store)...)
		for _, idx := range indexes {
			require.NoError(t, idx.Build(store.Records()))
		}

		rng := rand.New(rand.NewSource(42))
		for q := 0; q < 60; q++ {
			box := randomBox(rng, dim)
			want := expectedLive(store, box)
			for _, idx := range indexes {
				got := sortedIDs(idx.RangeQuery(box))
				require.Equal(t, want, got, "dim=%d kind=%s box=%v", dim, indexName(idx), box)
			}
		}
	}
}

// TestRangeQuery_DeterministicOrder tests that repeated queries return the same order
func TestRangeQuery_DeterministicOrder(t *testing.T) {
	store := randomStore(t, 3, 200, 7)
	for _, idx := range smallIndexes(t, store) {
		t.Run(indexName(idx), func(t *testing.T) {
			require.NoError(t, idx.Build(store.Records()))
			box := Box{Min: []float64{5, 5, 5}, Max: []float64{40, 40, 40}}
			first := idx.RangeQuery(box)
			second := idx.RangeQuery(box)
			assert.Equal(t, first, second)
		})
	}
}

// TestRangeQuery_EmptyBuild tests queries against indexes built from no records
func TestRangeQuery_EmptyBuild(t *testing.T) {
	store, err := NewStore(2)
	require.NoError(t, err)

	for _, idx := range append(defaultIndexes(t, store), smallIndexes(t, store)...) {
		t.Run(indexName(idx), func(t *testing.T) {
			require.NoError(t, idx.Build(nil))
			assert.Empty(t, idx.RangeQuery(UnboundedBox(2)))
			assert.Equal(t, 0, idx.Len())

			results, err := idx.NewSearch().Execute()
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

// TestRangeQuery_MalformedBox tests that malformed boxes match nothing
func TestRangeQuery_MalformedBox(t *testing.T) {
	store, _ := scenario(t)

	for _, idx := range smallIndexes(t, store) {
		t.Run(indexName(idx), func(t *testing.T) {
			require.NoError(t, idx.Build(store.Records()))

			inverted := Box{Min: []float64{0, 30}, Max: []float64{1e9, 0}}
			assert.Empty(t, idx.RangeQuery(inverted))

			results, err := idx.NewSearch().WithMin(300, 0).WithMax(50, 100).Execute()
			require.NoError(t, err)
			assert.Empty(t, results)

			wrongDim := Box{Min: []float64{0}, Max: []float64{1e9}}
			assert.Empty(t, idx.RangeQuery(wrongDim))

			nan := Box{Min: []float64{math.NaN(), 0}, Max: []float64{1e9, 1e9}}
			assert.Empty(t, idx.RangeQuery(nan))
		})
	}
}

// TestDelete_Idempotent tests that deleting twice changes nothing
func TestDelete_Idempotent(t *testing.T) {
	store, byTitle := scenario(t)
	box := UnboundedBox(2)

	for _, idx := range smallIndexes(t, store) {
		t.Run(indexName(idx), func(t *testing.T) {
			require.NoError(t, idx.Build(store.Records()))

			before := titles(idx.RangeQuery(box))
			require.NoError(t, idx.Delete(byTitle["B"].ID()))
			once := titles(idx.RangeQuery(box))
			require.NoError(t, idx.Delete(byTitle["B"].ID()))
			twice := titles(idx.RangeQuery(box))

			assert.NotContains(t, once, "B")
			assert.Equal(t, once, twice)
			assert.Len(t, once, len(before)-1)
		})
	}

	idx, err := NewScanIndex(store)
	require.NoError(t, err)
	assert.ErrorIs(t, idx.Delete(999), ErrRecordNotFound)
}

// TestDelete_AllButOne tests queries after deleting every record but one
func TestDelete_AllButOne(t *testing.T) {
	for _, kind := range SpatialIndexKinds() {
		t.Run(string(kind), func(t *testing.T) {
			store := randomStore(t, 3, 150, 11)
			idx, err := BuildSpatialIndex(kind, store, store.Records())
			require.NoError(t, err)

			records := store.Records()
			keep := records[73]
			for _, r := range records {
				if r != keep {
					require.NoError(t, idx.Delete(r.ID()))
				}
			}

			got := idx.RangeQuery(UnboundedBox(3))
			require.Len(t, got, 1)
			assert.Equal(t, keep.ID(), got[0].ID())
		})
	}
}

// TestUpdate_ReplacesRecord tests that an update swaps the old record for its new version
func TestUpdate_ReplacesRecord(t *testing.T) {
	for _, kind := range SpatialIndexKinds() {
		t.Run(string(kind), func(t *testing.T) {
			store, byTitle := scenario(t)
			idx, err := BuildSpatialIndex(kind, store, store.Records())
			require.NoError(t, err)

			box := Box{Min: []float64{50, 2}, Max: []float64{250, 25}}
			a := byTitle["A"]

			newID, err := idx.Update(a.ID(), 1, 24)
			require.NoError(t, err)
			assert.NotEqual(t, a.ID(), newID)

			got := idx.RangeQuery(box)
			ids := sortedIDs(got)
			assert.NotContains(t, ids, a.ID())
			assert.Contains(t, ids, newID)

			updated, ok := store.Get(newID)
			require.True(t, ok)
			assert.Equal(t, []float64{100, 24}, updated.Vector())
			assert.Equal(t, "A", updated.Title())
			assert.Equal(t, a.Signature(), updated.Signature())

			successor, superseded := a.SupersededBy()
			assert.True(t, superseded)
			assert.Equal(t, newID, successor)
			assert.True(t, a.Deleted())

			// moved out of the box
			movedID, err := idx.Update(newID, 1, 30)
			require.NoError(t, err)
			ids = sortedIDs(idx.RangeQuery(box))
			assert.NotContains(t, ids, newID)
			assert.NotContains(t, ids, movedID)
			assert.Contains(t, sortedIDs(idx.RangeQuery(UnboundedBox(2))), movedID)

			_, err = idx.Update(a.ID(), 1, 3)
			assert.ErrorIs(t, err, ErrRecordSuperseded)
		})
	}
}

// TestUpdate_ManyInsertsMatchScan tests that indexes stay correct through many updates
func TestUpdate_ManyInsertsMatchScan(t *testing.T) {
	for _, dim := range []int{2, 4} {
		template := randomStore(t, dim, 120, 99)
		rng := rand.New(rand.NewSource(5))

		// every index gets its own identical store so versions stay separate
		var indexes []SpatialIndex
		var stores []*Store
		for _, idx := range smallIndexes(t, template) {
			s := randomStore(t, dim, 120, 99)
			fresh, err := rebind(idx, s)
			require.NoError(t, err)
			require.NoError(t, fresh.Build(s.Records()))
			stores = append(stores, s)
			indexes = append(indexes, fresh)
		}

		// identical update sequences on every store
		for step := 0; step < 200; step++ {
			id := uint32(rng.Intn(120))
			axis := rng.Intn(dim)
			value := float64(rng.Intn(60) - 5)
			for i, idx := range indexes {
				latest, err := stores[i].Latest(id)
				require.NoError(t, err)
				_, err = idx.Update(latest.ID(), axis, value)
				require.NoError(t, err)
			}
		}

		for q := 0; q < 40; q++ {
			box := randomBox(rng, dim)
			for i, idx := range indexes {
				require.Equal(t, expectedLive(stores[i], box), sortedIDs(idx.RangeQuery(box)),
					"dim=%d kind=%s", dim, indexName(idx))
			}
		}
	}
}

// rebind creates an index of the same kind and tuning over another store.
func rebind(idx SpatialIndex, store *Store) (SpatialIndex, error) {
	switch x := idx.(type) {
	case *HypercubeIndex:
		return NewHypercubeIndex(store, x.capacity, x.maxDepth)
	case *RangeTreeIndex:
		return NewRangeTreeIndex(store, x.primary, x.secondary)
	case *RTreeIndex:
		return NewRTreeIndex(store, x.leafCapacity, x.fanout, x.maxChildren, x.policy)
	default:
		return NewSpatialIndex(idx.Kind(), store)
	}
}

// TestInsert_Rejects tests insert validation on every index
func TestInsert_Rejects(t *testing.T) {
	store, _ := scenario(t)
	other, err := NewStore(3)
	require.NoError(t, err)
	foreign, err := other.Add(RecordDraft{Title: "x", Vector: []float64{1, 2, 3}})
	require.NoError(t, err)

	for _, idx := range smallIndexes(t, store) {
		t.Run(indexName(idx), func(t *testing.T) {
			assert.ErrorIs(t, idx.Insert(nil), ErrNilRecord)
			assert.ErrorIs(t, idx.Insert(foreign), ErrDimensionMismatch)
			assert.ErrorIs(t, idx.Build([]*Record{foreign}), ErrDimensionMismatch)
		})
	}
}

// TestRangeSearch_Builder tests the range search builder options
func TestRangeSearch_Builder(t *testing.T) {
	store, byTitle := scenario(t)
	idx, err := BuildSpatialIndex(KDTreeIndexKind, store, store.Records())
	require.NoError(t, err)

	t.Run("bounds default to unbounded", func(t *testing.T) {
		results, err := idx.NewSearch().WithMax(250, 100).Execute()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "E"}, titles(results))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := idx.NewSearch().WithMin(1, 2, 3).Execute()
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("limit", func(t *testing.T) {
		results, err := idx.NewSearch().WithLimit(2).Execute()
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("filter", func(t *testing.T) {
		filter := NewRecordFilter([]uint32{byTitle["A"].ID(), byTitle["D"].ID()})
		defer ReturnRecordFilter(filter)

		results, err := idx.NewSearch().WithBox(UnboundedBox(2)).WithFilter(filter).Execute()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "D"}, titles(results))
	})
}
