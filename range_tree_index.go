// Package meridian implements a simplified two-key range tree.
//
// WHAT IS THIS RANGE TREE?
// A binary search tree on a primary axis where every node also owns an
// auxiliary collection of its whole subtree ordered by a secondary axis. A
// full range tree would answer the secondary constraint from that collection;
// this one keeps the collection (built and maintained on insert) but answers
// range queries from the primary tree alone, testing all K axes at each node
// whose primary value is inside the box:
//
//	primary value in [min, max] -> test node, visit both children
//	primary value > max         -> visit left only
//	primary value < min         -> visit right only
//
// The auxiliary collections are a google/btree ordered by (secondary value,
// id); SecondaryRange reads the root's collection directly.
//
// TIME COMPLEXITY:
//   - Build: O(n log^2 n) for the primary sorts plus O(n log^2 n) for the
//     auxiliary collections
//   - Insert: O(depth * log n), one auxiliary insert per ancestor
//   - Query: O(log n + m') where m' counts nodes whose primary value is in range
//
// MEMORY:
// Each record appears in the auxiliary collection of every ancestor:
// O(n log n) references for a balanced tree.
package meridian

import (
	"fmt"
	"sort"

	"github.com/google/btree"
)

// Compile-time checks to ensure RangeTreeIndex implements SpatialIndex
var _ SpatialIndex = (*RangeTreeIndex)(nil)

// auxDegree is the btree degree for auxiliary collections.
const auxDegree = 8

// DefaultRangeTreeConfig returns the primary and secondary axes used when
// none are given: axis 0 and axis 1 (axis 0 again when K is 1).
func DefaultRangeTreeConfig(dim int) (primary, secondary int) {
	if dim < 2 {
		return 0, 0
	}
	return 0, 1
}

// secondaryEntry orders records by their secondary value, ties by id.
type secondaryEntry struct {
	value  float64
	id     uint32
	record *Record
}

func lessSecondary(a, b secondaryEntry) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.id < b.id
}

// rtNode is one range tree node. It owns its children and its auxiliary
// collection; the record is a reference.
type rtNode struct {
	record *Record
	left   *rtNode
	right  *rtNode
	aux    *btree.BTreeG[secondaryEntry]
}

// RangeTreeIndex represents a range tree over the records of a store.
type RangeTreeIndex struct {
	indexBase

	primary   int
	secondary int

	root *rtNode
	size int
}

// NewRangeTreeIndex creates an empty range tree over store.
//
// Parameters:
//   - store: record owner; fixes K
//   - primary: axis the binary tree is ordered on
//   - secondary: axis the auxiliary collections are ordered on
func NewRangeTreeIndex(store *Store, primary, secondary int) (*RangeTreeIndex, error) {
	base, err := newIndexBase(store, RangeTreeIndexKind)
	if err != nil {
		return nil, err
	}
	for _, axis := range []int{primary, secondary} {
		if axis < 0 || axis >= base.dim {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAxis, axis, base.dim)
		}
	}
	return &RangeTreeIndex{
		indexBase: base,
		primary:   primary,
		secondary: secondary,
	}, nil
}

// Build replaces the tree with a balanced tree over records.
func (idx *RangeTreeIndex) Build(records []*Record) error {
	if err := idx.checkRecords(records); err != nil {
		return err
	}
	refs := append([]*Record(nil), records...)
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].vector[idx.primary] < refs[j].vector[idx.primary]
	})
	idx.root = idx.build(refs)
	idx.size = len(refs)
	return nil
}

// build expects refs sorted on the primary axis; every subslice of a sorted
// slice is sorted, so one sort serves the whole recursion.
func (idx *RangeTreeIndex) build(refs []*Record) *rtNode {
	if len(refs) == 0 {
		return nil
	}

	aux := btree.NewG(auxDegree, lessSecondary)
	for _, r := range refs {
		aux.ReplaceOrInsert(idx.entry(r))
	}

	mid := len(refs) / 2
	return &rtNode{
		record: refs[mid],
		left:   idx.build(refs[:mid]),
		right:  idx.build(refs[mid+1:]),
		aux:    aux,
	}
}

func (idx *RangeTreeIndex) entry(r *Record) secondaryEntry {
	return secondaryEntry{value: r.vector[idx.secondary], id: r.id, record: r}
}

// Insert descends on the primary axis (strictly less goes left), adds the
// record to the auxiliary collection of every node on the way and attaches
// it as a new leaf.
func (idx *RangeTreeIndex) Insert(record *Record) error {
	if err := idx.checkRecord(record); err != nil {
		return err
	}

	e := idx.entry(record)
	link := &idx.root
	for *link != nil {
		node := *link
		node.aux.ReplaceOrInsert(e)
		if record.vector[idx.primary] < node.record.vector[idx.primary] {
			link = &node.left
		} else {
			link = &node.right
		}
	}

	aux := btree.NewG(auxDegree, lessSecondary)
	aux.ReplaceOrInsert(e)
	*link = &rtNode{record: record, aux: aux}
	idx.size++
	return nil
}

// Update creates a new version of id with value on axis and inserts it.
func (idx *RangeTreeIndex) Update(id uint32, axis int, value float64) (uint32, error) {
	return idx.update(id, axis, value, idx.Insert)
}

// RangeQuery returns the live records inside box in pre-order.
func (idx *RangeTreeIndex) RangeQuery(box Box) []*Record {
	if !idx.queryable(box) {
		return nil
	}
	var results []*Record
	idx.query(idx.root, box, &results)
	return results
}

func (idx *RangeTreeIndex) query(node *rtNode, box Box, results *[]*Record) {
	if node == nil {
		return
	}

	lo, hi := box.Min[idx.primary], box.Max[idx.primary]
	value := node.record.vector[idx.primary]

	switch {
	case value > hi:
		idx.query(node.left, box, results)
	case value < lo:
		idx.query(node.right, box, results)
	default:
		if !node.record.deleted && box.Contains(node.record.vector) {
			*results = append(*results, node.record)
		}
		idx.query(node.left, box, results)
		idx.query(node.right, box, results)
	}
}

// SecondaryRange returns the live records whose secondary value lies in
// [lo, hi], ascending by secondary value then id. It reads the root's
// auxiliary collection and ignores every other axis.
func (idx *RangeTreeIndex) SecondaryRange(lo, hi float64) []*Record {
	if idx.root == nil || lo > hi {
		return nil
	}
	var results []*Record
	idx.root.aux.AscendGreaterOrEqual(secondaryEntry{value: lo}, func(e secondaryEntry) bool {
		if e.value > hi {
			return false
		}
		if !e.record.deleted {
			results = append(results, e.record)
		}
		return true
	})
	return results
}

// Axes returns the primary and secondary axes.
func (idx *RangeTreeIndex) Axes() (primary, secondary int) {
	return idx.primary, idx.secondary
}

// NewSearch creates a new search builder for this index.
func (idx *RangeTreeIndex) NewSearch() RangeSearch {
	return newRangeSearch(idx)
}

// Len returns the number of record references in the tree.
func (idx *RangeTreeIndex) Len() int {
	return idx.size
}

// Kind returns RangeTreeIndexKind.
func (idx *RangeTreeIndex) Kind() SpatialIndexKind {
	return RangeTreeIndexKind
}
