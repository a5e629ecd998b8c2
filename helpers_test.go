package meridian

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenario loads the five-record budget/popularity fixture:
// A(100,10) B(200,20) C(300,5) D(5000,40) E(50,2).
func scenario(t *testing.T) (*Store, map[string]*Record) {
	t.Helper()

	store, err := NewStore(2)
	require.NoError(t, err)

	signer, err := NewMinHasher(DefaultSignatureSlots)
	require.NoError(t, err)

	drafts := []RecordDraft{
		{Title: "A", Vector: []float64{100, 10}, Signature: signer.Sign("Action Adventure")},
		{Title: "B", Vector: []float64{200, 20}, Signature: signer.Sign("Action Adventure Comedy")},
		{Title: "C", Vector: []float64{300, 5}, Signature: signer.Sign("Drama Romance")},
		{Title: "D", Vector: []float64{5000, 40}, Signature: signer.Sign("Documentary")},
		{Title: "E", Vector: []float64{50, 2}, Signature: signer.Sign("Action Adventure")},
	}
	records, err := store.Load(drafts)
	require.NoError(t, err)

	byTitle := make(map[string]*Record, len(records))
	for _, r := range records {
		byTitle[r.Title()] = r
	}
	return store, byTitle
}

// randomStore loads n records with K attributes drawn from a small integer
// grid so that ties and boundary hits are common.
func randomStore(t *testing.T, dim, n int, seed int64) *Store {
	t.Helper()

	store, err := NewStore(dim)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(seed))
	drafts := make([]RecordDraft, n)
	for i := range drafts {
		v := make([]float64, dim)
		for d := range v {
			v[d] = float64(rng.Intn(50))
		}
		sig := make([]uint32, DefaultSignatureSlots)
		for s := range sig {
			sig[s] = uint32(rng.Intn(4))
		}
		drafts[i] = RecordDraft{Title: "r", Vector: v, Signature: sig}
	}
	_, err = store.Load(drafts)
	require.NoError(t, err)
	return store
}

// randomBox draws a box on the same grid; it may be malformed.
func randomBox(rng *rand.Rand, dim int) Box {
	b := Box{Min: make([]float64, dim), Max: make([]float64, dim)}
	for d := 0; d < dim; d++ {
		b.Min[d] = float64(rng.Intn(55) - 3)
		b.Max[d] = b.Min[d] + float64(rng.Intn(30)-2)
	}
	return b
}

// smallIndexes returns one index of every kind, tuned so that a few dozen
// records already force splits.
func smallIndexes(t *testing.T, store *Store) []SpatialIndex {
	t.Helper()

	kd, err := NewKDTreeIndex(store)
	require.NoError(t, err)
	hc, err := NewHypercubeIndex(store, 4, 6)
	require.NoError(t, err)
	rt, err := NewRangeTreeIndex(store, 0, store.Dimensions()-1)
	require.NoError(t, err)
	r1, err := NewRTreeIndex(store, 4, 3, 4, FirstChild)
	require.NoError(t, err)
	r2, err := NewRTreeIndex(store, 4, 3, 4, LeastEnlargement)
	require.NoError(t, err)
	scan, err := NewScanIndex(store)
	require.NoError(t, err)

	return []SpatialIndex{kd, hc, rt, r1, r2, scan}
}

// defaultIndexes returns one index of every kind with default tuning.
func defaultIndexes(t *testing.T, store *Store) []SpatialIndex {
	t.Helper()

	var out []SpatialIndex
	for _, kind := range SpatialIndexKinds() {
		idx, err := NewSpatialIndex(kind, store)
		require.NoError(t, err)
		out = append(out, idx)
	}
	return out
}

func indexName(idx SpatialIndex) string {
	if r, ok := idx.(*RTreeIndex); ok {
		return string(idx.Kind()) + "/" + string(r.policy)
	}
	return string(idx.Kind())
}

// sortedIDs returns the ids of records in ascending order.
func sortedIDs(records []*Record) []uint32 {
	ids := make([]uint32, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// titles returns the titles of records sorted alphabetically.
func titles(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title()
	}
	sort.Strings(out)
	return out
}

// expectedLive is the brute-force answer: live records of the store inside box.
func expectedLive(store *Store, box Box) []uint32 {
	if !box.Valid() {
		return []uint32{}
	}
	ids := []uint32{}
	for _, r := range store.Live() {
		if box.Contains(r.Vector()) {
			ids = append(ids, r.ID())
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
