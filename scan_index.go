// Package meridian implements a linear scan index for range queries.
//
// WHAT IS A SCAN INDEX?
// The scan index keeps record references in insertion order and answers a
// range query by testing every one of them. There is no structure to get
// wrong, which makes it the reference the tree-based kinds are compared
// against in tests and benchmarks.
//
// TIME COMPLEXITY:
//   - Build: O(n)
//   - Insert: O(1) amortized
//   - Query: O(n*K)
//
// WHEN TO USE:
//  1. Small collections where any tree is overhead
//  2. Checking another index kind for correctness
package meridian

// Compile-time checks to ensure ScanIndex implements SpatialIndex
var _ SpatialIndex = (*ScanIndex)(nil)

// ScanIndex represents a brute-force range index.
type ScanIndex struct {
	indexBase

	// records holds every reference ever inserted, in insertion order.
	// Tombstoned records stay and are skipped at query time.
	records []*Record
}

// NewScanIndex creates an empty scan index over store.
func NewScanIndex(store *Store) (*ScanIndex, error) {
	base, err := newIndexBase(store, ScanIndexKind)
	if err != nil {
		return nil, err
	}
	return &ScanIndex{
		indexBase: base,
		records:   make([]*Record, 0),
	}, nil
}

// Build replaces the contents with records.
func (idx *ScanIndex) Build(records []*Record) error {
	if err := idx.checkRecords(records); err != nil {
		return err
	}
	idx.records = append(make([]*Record, 0, len(records)), records...)
	return nil
}

// Insert appends a record reference.
func (idx *ScanIndex) Insert(record *Record) error {
	if err := idx.checkRecord(record); err != nil {
		return err
	}
	idx.records = append(idx.records, record)
	return nil
}

// Update creates a new version of id with value on axis and appends it.
func (idx *ScanIndex) Update(id uint32, axis int, value float64) (uint32, error) {
	return idx.update(id, axis, value, idx.Insert)
}

// RangeQuery tests every record against box.
func (idx *ScanIndex) RangeQuery(box Box) []*Record {
	if !idx.queryable(box) {
		return nil
	}
	var results []*Record
	for _, r := range idx.records {
		if r.deleted || !box.Contains(r.vector) {
			continue
		}
		results = append(results, r)
	}
	return results
}

// NewSearch creates a new search builder for this index.
func (idx *ScanIndex) NewSearch() RangeSearch {
	return newRangeSearch(idx)
}

// Len returns the number of record references held.
func (idx *ScanIndex) Len() int {
	return len(idx.records)
}

// Kind returns ScanIndexKind.
func (idx *ScanIndex) Kind() SpatialIndexKind {
	return ScanIndexKind
}
