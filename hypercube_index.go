// Package meridian implements a hypercube bucket trie for range queries.
//
// WHAT IS A HYPERCUBE TRIE?
// The hypercube trie generalizes the quadtree (K=2) and octree (K=3) to any
// K. Every node covers a hyper-rectangular region. A leaf holds up to
// `capacity` record references; when one more arrives the leaf bisects its
// region on every axis at once, producing 2^K children, and pushes its
// records down.
//
// CHILD ADDRESSING:
// Child i covers the upper half of axis d when bit d of i is set:
//
//	K=2, mid=(5,5):  child 0 = low/low, 1 = high/low, 2 = low/high, 3 = high/high
//
// A record goes to the upper half when value[d] >= mid[d].
//
// OVERFLOW POLICY:
// A leaf at maxDepth never splits again; it keeps accepting records past
// capacity. This bounds the depth for heavily duplicated points.
//
// ROOT REGION:
// The root region comes from SetRootRegion or, by default, the bounding box
// of the build input. Inserting a record outside the root region grows the
// region to cover it and rebuilds the trie, so region pruning never hides a
// record.
//
// TIME COMPLEXITY:
//   - Insert: O(depth + capacity) amortized
//   - Query: visits only nodes whose region overlaps the box
//
// MEMORY:
// Splitting allocates all 2^K children at once, so sparse data in high K
// leaves many empty leaves.
package meridian

import (
	"fmt"
	"math"
)

// Compile-time checks to ensure HypercubeIndex implements SpatialIndex
var _ SpatialIndex = (*HypercubeIndex)(nil)

// DefaultHypercubeConfig returns the leaf capacity and maximum depth used
// when none are given.
func DefaultHypercubeConfig() (capacity, maxDepth int) {
	return 50, 30
}

// hcNode is one trie node. Leaves hold records, internal nodes hold exactly
// 2^K children.
type hcNode struct {
	region   Box
	records  []*Record
	children []*hcNode
}

func (n *hcNode) leaf() bool {
	return n.children == nil
}

// HypercubeIndex represents a hypercube bucket trie over the records of a store.
type HypercubeIndex struct {
	indexBase

	capacity int
	maxDepth int

	// fixed is the caller-provided root region, if any.
	fixed *Box

	root *hcNode

	// refs keeps every inserted reference in insertion order so the trie
	// can be rebuilt when the root region grows.
	refs []*Record
}

// NewHypercubeIndex creates an empty hypercube trie over store.
//
// Parameters:
//   - store: record owner; fixes K
//   - capacity: records per leaf before it splits (> 0)
//   - maxDepth: depth at which leaves stop splitting (>= 0)
func NewHypercubeIndex(store *Store, capacity, maxDepth int) (*HypercubeIndex, error) {
	base, err := newIndexBase(store, HypercubeIndexKind)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("leaf capacity must be positive, got %d", capacity)
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative, got %d", maxDepth)
	}
	if store.Dimensions() > 16 {
		return nil, fmt.Errorf("hypercube trie supports at most 16 axes, got %d", store.Dimensions())
	}
	return &HypercubeIndex{
		indexBase: base,
		capacity:  capacity,
		maxDepth:  maxDepth,
	}, nil
}

// SetRootRegion fixes the root region used by the next Build.
// The region must be valid and finite on every axis.
func (idx *HypercubeIndex) SetRootRegion(region Box) error {
	if region.Dimensions() != idx.dim {
		return fmt.Errorf("%w: region has %d axes, index has %d", ErrDimensionMismatch, region.Dimensions(), idx.dim)
	}
	if !region.Valid() {
		return fmt.Errorf("root region has min > max")
	}
	for d := 0; d < idx.dim; d++ {
		if math.IsInf(region.Min[d], 0) || math.IsInf(region.Max[d], 0) {
			return fmt.Errorf("root region must be finite on axis %d", d)
		}
	}
	r := region.Clone()
	idx.fixed = &r
	return nil
}

// Build replaces the trie with one holding records, inserted in order.
func (idx *HypercubeIndex) Build(records []*Record) error {
	if err := idx.checkRecords(records); err != nil {
		return err
	}

	idx.refs = append(make([]*Record, 0, len(records)), records...)
	idx.root = nil
	if len(records) == 0 && idx.fixed == nil {
		return nil
	}

	idx.root = &hcNode{region: idx.buildRegion(records)}
	for _, r := range records {
		idx.insert(idx.root, r, 0)
	}
	return nil
}

// buildRegion is the fixed region grown to cover records, or the records'
// bounding box when no region is fixed.
func (idx *HypercubeIndex) buildRegion(records []*Record) Box {
	region := EmptyBox(idx.dim)
	if idx.fixed != nil {
		region = idx.fixed.Clone()
	}
	for _, r := range records {
		region.Extend(r.vector)
	}
	return region
}

// Insert adds a record, growing the root region first if needed.
func (idx *HypercubeIndex) Insert(record *Record) error {
	if err := idx.checkRecord(record); err != nil {
		return err
	}

	idx.refs = append(idx.refs, record)

	if idx.root == nil {
		idx.root = &hcNode{region: idx.buildRegion([]*Record{record})}
		idx.insert(idx.root, record, 0)
		return nil
	}

	if !idx.root.region.Contains(record.vector) {
		idx.regrow(record)
		return nil
	}

	idx.insert(idx.root, record, 0)
	return nil
}

// regrow rebuilds the trie over a region that also covers record. refs
// already includes record.
func (idx *HypercubeIndex) regrow(record *Record) {
	region := idx.root.region.Clone()
	region.Extend(record.vector)

	idx.logger.Debug("root region grown",
		"record", record.ID(), "min", region.Min, "max", region.Max, "records", len(idx.refs))

	idx.root = &hcNode{region: region}
	for _, r := range idx.refs {
		idx.insert(idx.root, r, 0)
	}
}

func (idx *HypercubeIndex) insert(node *hcNode, record *Record, depth int) {
	for !node.leaf() {
		node = node.children[childIndex(node.region, record.vector)]
		depth++
	}

	if len(node.records) < idx.capacity || depth >= idx.maxDepth {
		node.records = append(node.records, record)
		return
	}

	idx.split(node, depth)
	idx.insert(node.children[childIndex(node.region, record.vector)], record, depth+1)
}

// split turns a full leaf into an internal node with 2^K children and
// redistributes its records.
func (idx *HypercubeIndex) split(node *hcNode, depth int) {
	mid := midpoint(node.region)
	node.children = make([]*hcNode, 1<<idx.dim)
	for i := range node.children {
		child := Box{Min: make([]float64, idx.dim), Max: make([]float64, idx.dim)}
		for d := 0; d < idx.dim; d++ {
			if (i>>d)&1 == 1 {
				child.Min[d], child.Max[d] = mid[d], node.region.Max[d]
			} else {
				child.Min[d], child.Max[d] = node.region.Min[d], mid[d]
			}
		}
		node.children[i] = &hcNode{region: child}
	}

	records := node.records
	node.records = nil
	for _, r := range records {
		idx.insert(node.children[childIndex(node.region, r.vector)], r, depth+1)
	}
}

func midpoint(region Box) []float64 {
	mid := make([]float64, len(region.Min))
	for d := range mid {
		mid[d] = (region.Min[d] + region.Max[d]) / 2
	}
	return mid
}

// childIndex sets bit d when p is in the upper half of axis d.
func childIndex(region Box, p []float64) int {
	i := 0
	for d := range p {
		if p[d] >= (region.Min[d]+region.Max[d])/2 {
			i |= 1 << d
		}
	}
	return i
}

// Update creates a new version of id with value on axis and inserts it.
func (idx *HypercubeIndex) Update(id uint32, axis int, value float64) (uint32, error) {
	return idx.update(id, axis, value, idx.Insert)
}

// RangeQuery returns the live records inside box, leaves visited in child
// order.
func (idx *HypercubeIndex) RangeQuery(box Box) []*Record {
	if !idx.queryable(box) || idx.root == nil {
		return nil
	}
	var results []*Record
	idx.query(idx.root, box, &results)
	return results
}

func (idx *HypercubeIndex) query(node *hcNode, box Box, results *[]*Record) {
	if !node.region.Intersects(box) {
		return
	}
	if node.leaf() {
		for _, r := range node.records {
			if !r.deleted && box.Contains(r.vector) {
				*results = append(*results, r)
			}
		}
		return
	}
	for _, child := range node.children {
		idx.query(child, box, results)
	}
}

// HypercubeStats describes the shape of the trie.
type HypercubeStats struct {
	Nodes    int
	Leaves   int
	Depth    int
	Overfull int // leaves past capacity at max depth
}

// Stats walks the trie and reports its shape.
func (idx *HypercubeIndex) Stats() HypercubeStats {
	var stats HypercubeStats
	var walk func(n *hcNode, depth int)
	walk = func(n *hcNode, depth int) {
		stats.Nodes++
		stats.Depth = max(stats.Depth, depth)
		if n.leaf() {
			stats.Leaves++
			if len(n.records) > idx.capacity {
				stats.Overfull++
			}
			return
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	if idx.root != nil {
		walk(idx.root, 0)
	}
	return stats
}

// RootRegion returns a copy of the current root region. The boolean is
// false for an empty trie.
func (idx *HypercubeIndex) RootRegion() (Box, bool) {
	if idx.root == nil {
		return Box{}, false
	}
	return idx.root.region.Clone(), true
}

// NewSearch creates a new search builder for this index.
func (idx *HypercubeIndex) NewSearch() RangeSearch {
	return newRangeSearch(idx)
}

// Len returns the number of record references in the trie.
func (idx *HypercubeIndex) Len() int {
	return len(idx.refs)
}

// Kind returns HypercubeIndexKind.
func (idx *HypercubeIndex) Kind() SpatialIndexKind {
	return HypercubeIndexKind
}
