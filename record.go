package meridian

import (
	"fmt"
	"math"
)

// RecordDraft is the caller-supplied content of a record before the store
// assigns it an identifier.
//
// Vector holds the K attribute values in axis order. Signature holds the
// precomputed MinHash slots (see MinHasher); it may be empty when similarity
// lookups are not used.
type RecordDraft struct {
	Title     string
	Vector    []float64
	Signature []uint32
}

// Record is a single indexed item.
//
// A record is created only by a Store. Its identifier, title, vector and
// signature never change after creation; the only mutable state is the
// deletion flag and the superseded-by link set when an update produces a
// newer version. Indexes hold *Record references but never own them.
type Record struct {
	id        uint32
	title     string
	vector    []float64
	signature []uint32

	deleted bool

	// successor is the id of the version that replaced this record.
	// Only meaningful when superseded is true.
	successor  uint32
	superseded bool
}

// ID returns the record identifier.
func (r *Record) ID() uint32 {
	return r.id
}

// Title returns the record title.
func (r *Record) Title() string {
	return r.title
}

// Vector returns the attribute vector. Callers must not modify it.
func (r *Record) Vector() []float64 {
	return r.vector
}

// Value returns the attribute value on the given axis.
func (r *Record) Value(axis int) float64 {
	return r.vector[axis]
}

// Signature returns the similarity signature. Callers must not modify it.
func (r *Record) Signature() []uint32 {
	return r.signature
}

// Dimensions returns the number of attribute axes.
func (r *Record) Dimensions() int {
	return len(r.vector)
}

// Deleted reports whether the record carries a tombstone.
func (r *Record) Deleted() bool {
	return r.deleted
}

// Live is the negation of Deleted.
func (r *Record) Live() bool {
	return !r.deleted
}

// SupersededBy returns the id of the version that replaced this record.
// The boolean is false when the record has no successor.
func (r *Record) SupersededBy() (uint32, bool) {
	return r.successor, r.superseded
}

// String renders the record for logs and CLI output.
func (r *Record) String() string {
	return fmt.Sprintf("#%d %q %v", r.id, r.title, r.vector)
}

// validateDraft checks a draft against the store dimensionality and
// signature length. An empty signature marks an unsigned record.
func validateDraft(d RecordDraft, dim, slots int) error {
	if len(d.Vector) != dim {
		return fmt.Errorf("%w: expected %d attributes, got %d", ErrDimensionMismatch, dim, len(d.Vector))
	}
	if n := len(d.Signature); n != 0 && n != slots {
		return fmt.Errorf("%w: expected %d slots, got %d for %q", ErrSignatureLength, slots, n, d.Title)
	}
	for axis, v := range d.Vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: axis %d of %q", ErrNonFiniteValue, axis, d.Title)
		}
	}
	return nil
}
