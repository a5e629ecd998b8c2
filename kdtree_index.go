// Package meridian implements a k-d tree for multi-attribute range queries.
//
// WHAT IS A K-D TREE?
// A k-d tree is a binary search tree over K-dimensional points. Each level
// splits on a single axis, cycling through the axes with depth:
//
//	depth 0 -> axis 0, depth 1 -> axis 1, ..., depth K -> axis 0 again
//
// BUILD:
// At each level the records are sorted on the level's axis and the median
// (position n/2) becomes the node. Records before the median form the left
// subtree, records after it the right subtree. The result is balanced.
//
// INSERT:
// A new record descends from the root comparing on each node's axis: strictly
// less goes left, everything else goes right. It always becomes a new leaf.
// The tree is never rebalanced, so heavy insertion can degrade it.
//
// RANGE QUERY:
// Every visited node tests its own record against the box. The left subtree
// only holds values <= the node value on the split axis, so it is visited when
// node value >= box min on that axis; symmetrically the right subtree is
// visited when node value <= box max.
//
// TIME COMPLEXITY:
//   - Build: O(n log^2 n) with a sort per level
//   - Insert: O(depth)
//   - Query: O(n^(1-1/K) + m) on a balanced tree, m = reported records
package meridian

import "sort"

// Compile-time checks to ensure KDTreeIndex implements SpatialIndex
var _ SpatialIndex = (*KDTreeIndex)(nil)

// kdNode is one k-d tree node. It owns its children and references a record.
type kdNode struct {
	record *Record
	axis   int
	left   *kdNode
	right  *kdNode
}

// KDTreeIndex represents a k-d tree over the records of a store.
type KDTreeIndex struct {
	indexBase

	root *kdNode
	size int
}

// NewKDTreeIndex creates an empty k-d tree over store.
func NewKDTreeIndex(store *Store) (*KDTreeIndex, error) {
	base, err := newIndexBase(store, KDTreeIndexKind)
	if err != nil {
		return nil, err
	}
	return &KDTreeIndex{indexBase: base}, nil
}

// Build replaces the tree with a balanced tree over records.
// The input slice is not reordered.
func (idx *KDTreeIndex) Build(records []*Record) error {
	if err := idx.checkRecords(records); err != nil {
		return err
	}
	refs := append([]*Record(nil), records...)
	idx.root = idx.build(refs, 0)
	idx.size = len(refs)
	return nil
}

func (idx *KDTreeIndex) build(refs []*Record, depth int) *kdNode {
	if len(refs) == 0 {
		return nil
	}

	axis := depth % idx.dim
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].vector[axis] < refs[j].vector[axis]
	})

	mid := len(refs) / 2
	return &kdNode{
		record: refs[mid],
		axis:   axis,
		left:   idx.build(refs[:mid], depth+1),
		right:  idx.build(refs[mid+1:], depth+1),
	}
}

// Insert places record as a new leaf. Never rebalances.
func (idx *KDTreeIndex) Insert(record *Record) error {
	if err := idx.checkRecord(record); err != nil {
		return err
	}

	link := &idx.root
	depth := 0
	for *link != nil {
		node := *link
		if record.vector[node.axis] < node.record.vector[node.axis] {
			link = &node.left
		} else {
			link = &node.right
		}
		depth++
	}
	*link = &kdNode{record: record, axis: depth % idx.dim}
	idx.size++
	return nil
}

// Update creates a new version of id with value on axis and inserts it.
func (idx *KDTreeIndex) Update(id uint32, axis int, value float64) (uint32, error) {
	return idx.update(id, axis, value, idx.Insert)
}

// RangeQuery returns the live records inside box in pre-order.
func (idx *KDTreeIndex) RangeQuery(box Box) []*Record {
	if !idx.queryable(box) {
		return nil
	}
	var results []*Record
	idx.query(idx.root, box, &results)
	return results
}

func (idx *KDTreeIndex) query(node *kdNode, box Box, results *[]*Record) {
	if node == nil {
		return
	}
	if !node.record.deleted && box.Contains(node.record.vector) {
		*results = append(*results, node.record)
	}

	value := node.record.vector[node.axis]
	if value >= box.Min[node.axis] {
		idx.query(node.left, box, results)
	}
	if value <= box.Max[node.axis] {
		idx.query(node.right, box, results)
	}
}

// Height returns the number of levels on the longest root-to-leaf path.
func (idx *KDTreeIndex) Height() int {
	var height func(*kdNode) int
	height = func(n *kdNode) int {
		if n == nil {
			return 0
		}
		return 1 + max(height(n.left), height(n.right))
	}
	return height(idx.root)
}

// NewSearch creates a new search builder for this index.
func (idx *KDTreeIndex) NewSearch() RangeSearch {
	return newRangeSearch(idx)
}

// Len returns the number of record references in the tree.
func (idx *KDTreeIndex) Len() int {
	return idx.size
}

// Kind returns KDTreeIndexKind.
func (idx *KDTreeIndex) Kind() SpatialIndexKind {
	return KDTreeIndexKind
}
