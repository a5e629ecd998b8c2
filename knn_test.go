package meridian

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKNNRanker_Scenario tests neighbor ranking over the five-record fixture
func TestKNNRanker_Scenario(t *testing.T) {
	store, byTitle := scenario(t)
	dist, err := NewDistance(Euclidean)
	require.NoError(t, err)
	ranker := NewKNNRanker(dist)

	box := Box{Min: []float64{50, 2}, Max: []float64{300, 25}}
	idx, err := BuildSpatialIndex(KDTreeIndexKind, store, store.Records())
	require.NoError(t, err)
	candidates := idx.RangeQuery(box)

	neighbors := ranker.Rank(byTitle["A"], candidates, 5)
	require.Len(t, neighbors, 3)

	var got []string
	for _, n := range neighbors {
		got = append(got, n.Record.Title())
	}
	assert.Equal(t, []string{"E", "B", "C"}, got)
	assert.InDelta(t, math.Sqrt(50*50+8*8), neighbors[0].Distance, 1e-9)
	assert.InDelta(t, math.Sqrt(100*100+10*10), neighbors[1].Distance, 1e-9)
}

// TestKNNRanker_Scaled tests ranking with per-axis scaling
func TestKNNRanker_Scaled(t *testing.T) {
	store, err := NewStore(2)
	require.NoError(t, err)
	records, err := store.Load([]RecordDraft{
		{Title: "target", Vector: []float64{10_000_000, 5}},
		{Title: "close budget", Vector: []float64{10_500_000, 9}},
		{Title: "close popularity", Vector: []float64{13_000_000, 5}},
	})
	require.NoError(t, err)

	unscaled := NewKNNRanker(euclideanDistanceImpl).Rank(records[0], records, 2)
	assert.Equal(t, "close budget", unscaled[0].Record.Title())

	ranker, err := NewScaledKNNRanker([]float64{1e6, 1})
	require.NoError(t, err)
	scaled := ranker.Rank(records[0], records, 2)
	require.Len(t, scaled, 2)
	assert.Equal(t, "close popularity", scaled[0].Record.Title())
	assert.InDelta(t, 3.0, scaled[0].Distance, 1e-9)
	assert.InDelta(t, math.Sqrt(0.25+16), scaled[1].Distance, 1e-9)

	_, err = NewScaledKNNRanker([]float64{0, 1})
	assert.ErrorIs(t, err, ErrInvalidScale)
}

// TestKNNRanker_Properties tests ordering, size and self-exclusion of rankings
func TestKNNRanker_Properties(t *testing.T) {
	store := randomStore(t, 3, 150, 17)
	records := store.Records()
	ranker := NewKNNRanker(euclideanDistanceImpl)
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 50; trial++ {
		target := records[rng.Intn(len(records))]
		k := rng.Intn(12) - 1
		neighbors := ranker.Rank(target, records, k)

		assert.LessOrEqual(t, len(neighbors), max(k, 0))
		for i, n := range neighbors {
			assert.NotEqual(t, target.ID(), n.Record.ID())
			if i > 0 {
				assert.LessOrEqual(t, neighbors[i-1].Distance, n.Distance)
			}
		}
	}
}

// TestKNNRanker_StableTies tests that equal distances keep input order
func TestKNNRanker_StableTies(t *testing.T) {
	store, err := NewStore(1)
	require.NoError(t, err)
	records, err := store.Load([]RecordDraft{
		{Title: "t", Vector: []float64{0}},
		{Title: "right", Vector: []float64{1}},
		{Title: "left", Vector: []float64{-1}},
		{Title: "self twin", Vector: []float64{0}},
	})
	require.NoError(t, err)

	neighbors := NewKNNRanker(euclideanDistanceImpl).Rank(records[0], records, 3)
	require.Len(t, neighbors, 3)
	assert.Equal(t, "self twin", neighbors[0].Record.Title())
	assert.Equal(t, 0.0, neighbors[0].Distance)
	assert.Equal(t, "right", neighbors[1].Record.Title())
	assert.Equal(t, "left", neighbors[2].Record.Title())
}

// TestKNNRanker_Empty tests ranking with no target, no candidates or k of zero
func TestKNNRanker_Empty(t *testing.T) {
	store, byTitle := scenario(t)
	ranker := NewKNNRanker(euclideanDistanceImpl)

	assert.Empty(t, ranker.Rank(byTitle["A"], nil, 3))
	assert.Empty(t, ranker.Rank(nil, store.Records(), 3))
	assert.Empty(t, ranker.Rank(byTitle["A"], store.Records(), 0))
	assert.Empty(t, ranker.Rank(byTitle["A"], []*Record{byTitle["A"]}, 3))
}

// TestKNNRanker_Autocut tests trimming rankings at the first distance jump
func TestKNNRanker_Autocut(t *testing.T) {
	store, err := NewStore(1)
	require.NoError(t, err)
	records, err := store.Load([]RecordDraft{
		{Title: "t", Vector: []float64{0}},
		{Title: "a", Vector: []float64{1}},
		{Title: "b", Vector: []float64{1.1}},
		{Title: "c", Vector: []float64{1.2}},
		{Title: "far1", Vector: []float64{50}},
		{Title: "far2", Vector: []float64{51}},
	})
	require.NoError(t, err)

	ranker := NewKNNRanker(euclideanDistanceImpl)
	assert.Len(t, ranker.Rank(records[0], records, 10), 5)

	cut := ranker.WithAutocut(1).Rank(records[0], records, 10)
	assert.Len(t, cut, 3)
}
