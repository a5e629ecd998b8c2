package meridian

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// RecordFilter restricts searches to a set of record ids.
// It uses a roaring bitmap for fast membership tests inside result loops.
type RecordFilter struct {
	bitmap *roaring.Bitmap
}

// recordFilterPool is a sync.Pool for RecordFilter to reduce allocations
var recordFilterPool = sync.Pool{
	New: func() interface{} {
		return &RecordFilter{
			bitmap: roaring.New(),
		}
	},
}

// NewRecordFilter creates a filter from a list of record ids.
// If the list is empty, returns nil (no filtering).
// The filter should be returned to the pool using ReturnRecordFilter when done.
func NewRecordFilter(ids []uint32) *RecordFilter {
	if len(ids) == 0 {
		return nil
	}

	filter := recordFilterPool.Get().(*RecordFilter)
	filter.bitmap.Clear()
	filter.bitmap.AddMany(ids)

	return filter
}

// NewRecordFilterFromRecords creates a filter admitting exactly the given
// records. Unlike NewRecordFilter, an empty list yields an empty filter that
// admits nothing, so an empty range result restricts a later search to
// nothing.
func NewRecordFilterFromRecords(records []*Record) *RecordFilter {
	filter := recordFilterPool.Get().(*RecordFilter)
	filter.bitmap.Clear()
	for _, r := range records {
		filter.bitmap.Add(r.ID())
	}
	return filter
}

// NewRecordFilterFromBitmap wraps a copy of bitmap. A nil bitmap yields nil.
func NewRecordFilterFromBitmap(bitmap *roaring.Bitmap) *RecordFilter {
	if bitmap == nil {
		return nil
	}

	filter := recordFilterPool.Get().(*RecordFilter)
	filter.bitmap.Clear()
	filter.bitmap.Or(bitmap)

	return filter
}

// ReturnRecordFilter returns a filter to the pool for reuse.
// Do not use the filter after calling this method.
func ReturnRecordFilter(filter *RecordFilter) {
	if filter != nil {
		recordFilterPool.Put(filter)
	}
}

// IsEligible checks if a record id passes the filter.
// If filter is nil, all records are eligible.
func (f *RecordFilter) IsEligible(id uint32) bool {
	if f == nil {
		return true
	}
	return f.bitmap.Contains(id)
}

// ShouldSkip returns true if the record should be skipped (not eligible).
func (f *RecordFilter) ShouldSkip(id uint32) bool {
	return !f.IsEligible(id)
}

// Without removes the ids in other from the filter, e.g. the store's
// tombstones. A nil filter stays nil.
func (f *RecordFilter) Without(other *roaring.Bitmap) *RecordFilter {
	if f == nil || other == nil {
		return f
	}
	f.bitmap.AndNot(other)
	return f
}

// Count returns the number of eligible records.
// Returns 0 if filter is nil (meaning all records are eligible).
func (f *RecordFilter) Count() uint64 {
	if f == nil {
		return 0
	}
	return f.bitmap.GetCardinality()
}

// IsEmpty returns true if no records are eligible.
// Returns false if filter is nil (all records eligible).
func (f *RecordFilter) IsEmpty() bool {
	if f == nil {
		return false
	}
	return f.bitmap.IsEmpty()
}

// IDs returns the eligible ids in ascending order, nil for a nil filter.
func (f *RecordFilter) IDs() []uint32 {
	if f == nil {
		return nil
	}
	return f.bitmap.ToArray()
}
