package meridian

import (
	"fmt"
	"strings"
)

// SpatialIndexKind names a range-query index structure.
// All kinds answer the same queries with the same results; they differ in
// build cost, insert cost and how much of the space a query has to visit.
type SpatialIndexKind string

var (
	// KDTreeIndexKind splits on one axis per level, cycling through axes.
	KDTreeIndexKind SpatialIndexKind = "kdtree"

	// HypercubeIndexKind bisects every axis at once, giving 2^K children per
	// node (quadtree for K=2, octree for K=3).
	HypercubeIndexKind SpatialIndexKind = "hypercube"

	// RangeTreeIndexKind is a binary tree on a primary axis whose nodes also
	// keep their subtree ordered by a secondary axis.
	RangeTreeIndexKind SpatialIndexKind = "rangetree"

	// RTreeIndexKind groups records into nested minimum bounding boxes.
	RTreeIndexKind SpatialIndexKind = "rtree"

	// ScanIndexKind tests every record. Exact and slow; the reference the
	// other kinds are checked against.
	ScanIndexKind SpatialIndexKind = "scan"
)

// SpatialIndexKinds lists every supported kind in a stable order.
func SpatialIndexKinds() []SpatialIndexKind {
	return []SpatialIndexKind{
		KDTreeIndexKind,
		HypercubeIndexKind,
		RangeTreeIndexKind,
		RTreeIndexKind,
		ScanIndexKind,
	}
}

// ParseSpatialIndexKind resolves a kind name, case-insensitively.
func ParseSpatialIndexKind(name string) (SpatialIndexKind, error) {
	for _, kind := range SpatialIndexKinds() {
		if strings.EqualFold(name, string(kind)) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown index kind %q", name)
}

// SpatialIndex is the interface shared by every range-query structure.
type SpatialIndex interface {
	// Build replaces the index contents with the given records.
	// Building from zero records produces a valid empty index.
	Build(records []*Record) error

	// Insert adds one record reference using the structure's insert path.
	Insert(record *Record) error

	// Delete tombstones a record. Idempotent.
	Delete(id uint32) error

	// Update replaces the record's value on axis and returns the id of the
	// new version, which is inserted into this index.
	Update(id uint32, axis int, value float64) (uint32, error)

	// RangeQuery returns the live records inside box in traversal order.
	// A malformed box yields no records.
	RangeQuery(box Box) []*Record

	// NewSearch creates a new range search builder
	NewSearch() RangeSearch

	// Len returns the number of record references held, tombstoned included
	Len() int

	// Dimensions returns K
	Dimensions() int

	// Kind returns the type of spatial index
	Kind() SpatialIndexKind
}

// NewSpatialIndex creates an empty index of the given kind over store using
// default tuning. Call Build to populate it.
func NewSpatialIndex(kind SpatialIndexKind, store *Store) (SpatialIndex, error) {
	switch kind {
	case KDTreeIndexKind:
		return NewKDTreeIndex(store)
	case HypercubeIndexKind:
		capacity, maxDepth := DefaultHypercubeConfig()
		return NewHypercubeIndex(store, capacity, maxDepth)
	case RangeTreeIndexKind:
		primary, secondary := DefaultRangeTreeConfig(store.Dimensions())
		return NewRangeTreeIndex(store, primary, secondary)
	case RTreeIndexKind:
		leafCapacity, fanout, maxChildren := DefaultRTreeConfig()
		return NewRTreeIndex(store, leafCapacity, fanout, maxChildren, FirstChild)
	case ScanIndexKind:
		return NewScanIndex(store)
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

// BuildSpatialIndex creates an index of the given kind and builds it from
// records.
func BuildSpatialIndex(kind SpatialIndexKind, store *Store, records []*Record) (SpatialIndex, error) {
	idx, err := NewSpatialIndex(kind, store)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(records); err != nil {
		return nil, fmt.Errorf("build %s: %w", kind, err)
	}
	return idx, nil
}

// indexBase carries what every index needs from the store: its
// dimensionality, the tombstone/version operations and the logger.
type indexBase struct {
	store  *Store
	dim    int
	logger *Logger
}

func newIndexBase(store *Store, kind SpatialIndexKind) (indexBase, error) {
	if store == nil {
		return indexBase{}, fmt.Errorf("%s index requires a store", kind)
	}
	return indexBase{
		store:  store,
		dim:    store.Dimensions(),
		logger: store.Logger().WithIndex(kind),
	}, nil
}

// Delete tombstones the record in the shared store.
func (b *indexBase) Delete(id uint32) error {
	return b.store.Delete(id)
}

// Dimensions returns K.
func (b *indexBase) Dimensions() int {
	return b.dim
}

// update creates the new version in the store and hands it to the index's
// own insert path.
func (b *indexBase) update(id uint32, axis int, value float64, insert func(*Record) error) (uint32, error) {
	r, err := b.store.NewVersion(id, axis, value)
	if err != nil {
		return 0, err
	}
	if err := insert(r); err != nil {
		return 0, fmt.Errorf("insert version %d of %d: %w", r.ID(), id, err)
	}
	return r.ID(), nil
}

// checkRecord rejects records an index cannot place.
func (b *indexBase) checkRecord(r *Record) error {
	if r == nil {
		return ErrNilRecord
	}
	if r.Dimensions() != b.dim {
		return fmt.Errorf("%w: index has %d axes, record %d has %d", ErrDimensionMismatch, b.dim, r.ID(), r.Dimensions())
	}
	return nil
}

// checkRecords validates a whole build batch.
func (b *indexBase) checkRecords(records []*Record) error {
	for _, r := range records {
		if err := b.checkRecord(r); err != nil {
			return err
		}
	}
	return nil
}

// queryable reports whether a box can match anything in this index.
func (b *indexBase) queryable(box Box) bool {
	return box.Dimensions() == b.dim && box.Valid()
}
