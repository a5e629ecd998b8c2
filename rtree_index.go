// Package meridian implements a bulk-loaded R-tree for range queries.
//
// WHAT IS AN R-TREE?
// An R-tree groups records into nested minimum bounding boxes (MBRs). A leaf
// holds up to `leafCapacity` record references and its MBR covers its live
// records. An internal node holds child nodes and its MBR covers theirs. A
// query descends only into nodes whose MBR intersects the query box.
//
// BULK BUILD:
// When a batch does not fit one leaf it is sorted on the sort axis and cut
// into `fanout` near-equal contiguous groups, each built recursively:
//
//	n = 1000, leafCapacity = 100, fanout = 10 -> 10 leaves of 100
//
// INSERT:
// The record descends by the insert policy (FirstChild: always the first
// child; LeastEnlargement: the child whose MBR grows least) and is appended
// at the leaf. A leaf past capacity splits in two along the sort axis; an
// internal node past maxChildren splits its child list in two; a split root
// grows the tree by one level. MBRs are recomputed along the insert path.
//
// MBR INVARIANT:
// MBRs are derived data. They are recomputed from records or children and
// never assigned independently. Records deleted after an MBR was computed
// leave it larger than necessary, never smaller.
//
// TIME COMPLEXITY:
//   - Build: O(n log n) per level
//   - Insert: O(height * maxChildren) plus split cost
//   - Query: visits only nodes whose MBR intersects the box
package meridian

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Compile-time checks to ensure RTreeIndex implements SpatialIndex
var _ SpatialIndex = (*RTreeIndex)(nil)

// RTreeInsertPolicy picks the child an inserted record descends into.
type RTreeInsertPolicy string

const (
	// FirstChild always descends into the first child.
	FirstChild RTreeInsertPolicy = "first_child"

	// LeastEnlargement descends into the child whose MBR needs the least
	// growth to cover the record, first child on ties.
	LeastEnlargement RTreeInsertPolicy = "least_enlargement"
)

// ParseRTreeInsertPolicy resolves a policy name, case-insensitively.
func ParseRTreeInsertPolicy(name string) (RTreeInsertPolicy, error) {
	for _, p := range []RTreeInsertPolicy{FirstChild, LeastEnlargement} {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown r-tree insert policy %q", name)
}

// DefaultRTreeConfig returns the leaf capacity, build fan-out and maximum
// child count used when none are given.
func DefaultRTreeConfig() (leafCapacity, fanout, maxChildren int) {
	return 100, 10, 100
}

// rNode is one R-tree node. Leaves hold records, internal nodes children.
type rNode struct {
	mbr      Box
	leaf     bool
	records  []*Record
	children []*rNode
}

// RTreeIndex represents an R-tree over the records of a store.
type RTreeIndex struct {
	indexBase

	leafCapacity int
	fanout       int
	maxChildren  int
	policy       RTreeInsertPolicy

	// sortAxis orders records for bulk build and leaf splits.
	sortAxis int

	root *rNode
	size int
}

// NewRTreeIndex creates an empty R-tree over store.
//
// Parameters:
//   - store: record owner; fixes K
//   - leafCapacity: records per leaf before it splits (> 0)
//   - fanout: groups per internal node during bulk build (>= 2)
//   - maxChildren: children per internal node before it splits (>= fanout)
//   - policy: insert placement policy
func NewRTreeIndex(store *Store, leafCapacity, fanout, maxChildren int, policy RTreeInsertPolicy) (*RTreeIndex, error) {
	base, err := newIndexBase(store, RTreeIndexKind)
	if err != nil {
		return nil, err
	}
	if leafCapacity <= 0 {
		return nil, fmt.Errorf("leaf capacity must be positive, got %d", leafCapacity)
	}
	if fanout < 2 {
		return nil, fmt.Errorf("fan-out must be at least 2, got %d", fanout)
	}
	if maxChildren < fanout {
		return nil, fmt.Errorf("max children (%d) must be at least the fan-out (%d)", maxChildren, fanout)
	}
	if policy != FirstChild && policy != LeastEnlargement {
		return nil, fmt.Errorf("unknown r-tree insert policy %q", policy)
	}
	return &RTreeIndex{
		indexBase:    base,
		leafCapacity: leafCapacity,
		fanout:       fanout,
		maxChildren:  maxChildren,
		policy:       policy,
	}, nil
}

// SetSortAxis changes the axis used by the next Build and by leaf splits.
func (idx *RTreeIndex) SetSortAxis(axis int) error {
	if axis < 0 || axis >= idx.dim {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidAxis, axis, idx.dim)
	}
	idx.sortAxis = axis
	return nil
}

// Build replaces the tree with a bulk-loaded tree over records.
func (idx *RTreeIndex) Build(records []*Record) error {
	if err := idx.checkRecords(records); err != nil {
		return err
	}
	refs := append(make([]*Record, 0, len(records)), records...)
	idx.root = idx.build(refs)
	idx.size = len(refs)
	return nil
}

func (idx *RTreeIndex) build(refs []*Record) *rNode {
	if len(refs) <= idx.leafCapacity {
		node := &rNode{leaf: true, records: refs}
		idx.refresh(node)
		return node
	}

	idx.sortRecords(refs)

	groups := min(idx.fanout, len(refs))
	node := &rNode{children: make([]*rNode, 0, groups)}
	start := 0
	for g := 0; g < groups; g++ {
		size := len(refs) / groups
		if g < len(refs)%groups {
			size++
		}
		node.children = append(node.children, idx.build(refs[start:start+size:start+size]))
		start += size
	}
	idx.refresh(node)
	return node
}

func (idx *RTreeIndex) sortRecords(refs []*Record) {
	axis := idx.sortAxis
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].vector[axis] < refs[j].vector[axis]
	})
}

// refresh recomputes a node's MBR from its live records or its children.
func (idx *RTreeIndex) refresh(node *rNode) {
	mbr := EmptyBox(idx.dim)
	if node.leaf {
		for _, r := range node.records {
			if !r.deleted {
				mbr.Extend(r.vector)
			}
		}
	} else {
		for _, c := range node.children {
			for d := 0; d < idx.dim; d++ {
				mbr.Min[d] = math.Min(mbr.Min[d], c.mbr.Min[d])
				mbr.Max[d] = math.Max(mbr.Max[d], c.mbr.Max[d])
			}
		}
	}
	node.mbr = mbr
}

// Insert adds a record by the insert policy, splitting overfull nodes.
func (idx *RTreeIndex) Insert(record *Record) error {
	if err := idx.checkRecord(record); err != nil {
		return err
	}

	if idx.root == nil {
		idx.root = &rNode{leaf: true}
	}

	if sibling := idx.insert(idx.root, record); sibling != nil {
		root := &rNode{children: []*rNode{idx.root, sibling}}
		idx.refresh(root)
		idx.root = root
		idx.logger.Debug("root split", "height", idx.Height())
	}
	idx.size++
	return nil
}

// insert places record below node and returns the new sibling when node
// had to split.
func (idx *RTreeIndex) insert(node *rNode, record *Record) *rNode {
	if node.leaf {
		node.records = append(node.records, record)
		if len(node.records) > idx.leafCapacity {
			return idx.splitLeaf(node)
		}
		idx.refresh(node)
		return nil
	}

	i := idx.chooseChild(node, record)
	if sibling := idx.insert(node.children[i], record); sibling != nil {
		node.children = slices.Insert(node.children, i+1, sibling)
	}
	if len(node.children) > idx.maxChildren {
		return idx.splitInternal(node)
	}
	idx.refresh(node)
	return nil
}

func (idx *RTreeIndex) chooseChild(node *rNode, record *Record) int {
	if idx.policy == FirstChild {
		return 0
	}
	best, bestGrow := 0, math.Inf(1)
	for i, c := range node.children {
		if grow := c.mbr.Enlargement(record.vector); grow < bestGrow {
			best, bestGrow = i, grow
		}
	}
	return best
}

// splitLeaf keeps the lower half of the sorted records in node and moves the
// upper half to the returned sibling.
func (idx *RTreeIndex) splitLeaf(node *rNode) *rNode {
	idx.sortRecords(node.records)
	half := len(node.records) / 2

	upper := append([]*Record(nil), node.records[half:]...)
	node.records = append([]*Record(nil), node.records[:half]...)
	sibling := &rNode{leaf: true, records: upper}

	idx.refresh(node)
	idx.refresh(sibling)
	idx.logger.Debug("leaf split", "lower", len(node.records), "upper", len(upper))
	return sibling
}

// splitInternal moves the second half of the child list to the returned
// sibling. Children are already ordered by the build/split sequence.
func (idx *RTreeIndex) splitInternal(node *rNode) *rNode {
	half := len(node.children) / 2

	upper := append([]*rNode(nil), node.children[half:]...)
	node.children = append([]*rNode(nil), node.children[:half]...)
	sibling := &rNode{children: upper}

	idx.refresh(node)
	idx.refresh(sibling)
	return sibling
}

// Update creates a new version of id with value on axis and inserts it.
func (idx *RTreeIndex) Update(id uint32, axis int, value float64) (uint32, error) {
	return idx.update(id, axis, value, idx.Insert)
}

// RangeQuery returns the live records inside box, leaves visited left to
// right.
func (idx *RTreeIndex) RangeQuery(box Box) []*Record {
	if !idx.queryable(box) || idx.root == nil {
		return nil
	}
	var results []*Record
	idx.query(idx.root, box, &results)
	return results
}

func (idx *RTreeIndex) query(node *rNode, box Box, results *[]*Record) {
	if !node.mbr.Intersects(box) {
		return
	}
	if node.leaf {
		for _, r := range node.records {
			if !r.deleted && box.Contains(r.vector) {
				*results = append(*results, r)
			}
		}
		return
	}
	for _, c := range node.children {
		idx.query(c, box, results)
	}
}

// Height returns the number of levels along the leftmost path, 0 for an
// empty tree.
func (idx *RTreeIndex) Height() int {
	h := 0
	for n := idx.root; n != nil; {
		h++
		if n.leaf || len(n.children) == 0 {
			break
		}
		n = n.children[0]
	}
	return h
}

// Bounds returns the root MBR. The boolean is false when the tree has no
// live records covered by an MBR.
func (idx *RTreeIndex) Bounds() (Box, bool) {
	if idx.root == nil || !idx.root.mbr.Valid() {
		return Box{}, false
	}
	return idx.root.mbr.Clone(), true
}

// NewSearch creates a new search builder for this index.
func (idx *RTreeIndex) NewSearch() RangeSearch {
	return newRangeSearch(idx)
}

// Len returns the number of record references in the tree.
func (idx *RTreeIndex) Len() int {
	return idx.size
}

// Kind returns RTreeIndexKind.
func (idx *RTreeIndex) Kind() SpatialIndexKind {
	return RTreeIndexKind
}
