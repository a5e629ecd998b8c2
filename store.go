// Package meridian implements the record store shared by every spatial index.
//
// WHAT IS THE STORE?
// The store owns every record: the batch loaded at startup and each version
// record produced by an update. Indexes only hold references into it, so
// building, rebuilding or discarding an index never touches record memory.
//
// TOMBSTONE / VERSION MODEL:
// Records are never physically removed during a session.
//   - Delete sets the deletion flag and adds the id to a roaring bitmap.
//   - Update (NewVersion) copies the record with one attribute changed, gives
//     the copy a fresh id, tombstones the original and links it to the copy.
//
// The original batch and the versions arena are kept apart so Records()
// always returns exactly what was loaded, in load order.
//
// IDENTIFIERS:
// Ids are assigned sequentially from 0 and never reused, so an id doubles as
// an offset into the store. uint32 keeps ids compatible with roaring bitmaps.
package meridian

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

var (
	// ErrRecordNotFound is returned when an id does not name a stored record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordSuperseded is returned when updating a record that already has
	// a newer version. Updates must target the latest version.
	ErrRecordSuperseded = errors.New("record already superseded")

	// ErrDimensionMismatch is returned when a vector or box does not have the
	// expected number of axes.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidAxis is returned when an axis is outside [0, K).
	ErrInvalidAxis = errors.New("invalid axis")

	// ErrNonFiniteValue is returned for NaN or infinite attribute values.
	ErrNonFiniteValue = errors.New("non-finite attribute value")

	// ErrNilRecord is returned when a nil record is handed to an index.
	ErrNilRecord = errors.New("nil record")
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used by the store and every index built
// over it.
func WithStoreLogger(logger *Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSignatureSlots sets the signature length every signed record must
// have. Zero makes the store accept unsigned records only.
func WithSignatureSlots(n int) StoreOption {
	return func(s *Store) {
		s.signatureSlots = n
	}
}

// Store owns all records of one experiment.
//
// Not safe for concurrent use: every mutation must happen between queries on
// a single goroutine.
type Store struct {
	dim int

	// all is indexed by record id. Loaded records come first, versions are
	// appended as updates happen.
	all []*Record

	// loaded is the number of records in the original batch.
	loaded int

	// versions is the arena of records created by NewVersion.
	versions []*Record

	// tombstones mirrors the deletion flags for fast set operations.
	tombstones *roaring.Bitmap

	// signatureSlots is the length of every non-empty signature.
	signatureSlots int

	logger *Logger
}

// NewStore creates an empty store for K-dimensional records.
//
// Signatures default to DefaultSignatureSlots slots; see WithSignatureSlots.
// Returns an error if dim is not positive or the slot count is negative.
func NewStore(dim int, opts ...StoreOption) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	s := &Store{
		dim:            dim,
		all:            make([]*Record, 0),
		tombstones:     roaring.New(),
		signatureSlots: DefaultSignatureSlots,
		logger:         NoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.signatureSlots < 0 {
		return nil, fmt.Errorf("signature slots must not be negative, got %d", s.signatureSlots)
	}
	return s, nil
}

// Load appends a batch of drafts as original records.
//
// The batch is validated as a whole first; if any draft is malformed nothing
// is stored. A draft signature must be empty or have SignatureSlots slots. Load may be called more than once before the first update.
func (s *Store) Load(drafts []RecordDraft) ([]*Record, error) {
	for i, d := range drafts {
		if err := validateDraft(d, s.dim, s.signatureSlots); err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
	}
	if len(s.versions) > 0 {
		return nil, fmt.Errorf("cannot load records after versions were created")
	}

	out := make([]*Record, 0, len(drafts))
	for _, d := range drafts {
		r := s.newRecord(d.Title, d.Vector, d.Signature)
		out = append(out, r)
	}
	s.loaded = len(s.all)

	s.logger.Debug("records loaded", "count", len(out), "total", s.loaded)
	return out, nil
}

// Add stores a single draft as an original record.
func (s *Store) Add(d RecordDraft) (*Record, error) {
	records, err := s.Load([]RecordDraft{d})
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// newRecord copies the inputs and assigns the next id.
func (s *Store) newRecord(title string, vector []float64, signature []uint32) *Record {
	r := &Record{
		id:        uint32(len(s.all)),
		title:     title,
		vector:    append([]float64(nil), vector...),
		signature: append([]uint32(nil), signature...),
	}
	s.all = append(s.all, r)
	return r
}

// Get returns the record with the given id, original or version.
func (s *Store) Get(id uint32) (*Record, bool) {
	if int(id) >= len(s.all) {
		return nil, false
	}
	return s.all[id], true
}

// Records returns the loaded batch in load order.
// Version records are not included; see Versions.
func (s *Store) Records() []*Record {
	out := make([]*Record, s.loaded)
	copy(out, s.all[:s.loaded])
	return out
}

// Versions returns the records created by updates, oldest first.
func (s *Store) Versions() []*Record {
	out := make([]*Record, len(s.versions))
	copy(out, s.versions)
	return out
}

// Live returns every record without a tombstone, originals first.
func (s *Store) Live() []*Record {
	out := make([]*Record, 0, len(s.all)-int(s.tombstones.GetCardinality()))
	for _, r := range s.all {
		if !r.deleted {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the total number of records, versions included.
func (s *Store) Len() int {
	return len(s.all)
}

// LiveCount returns the number of records without a tombstone.
func (s *Store) LiveCount() int {
	return len(s.all) - int(s.tombstones.GetCardinality())
}

// Dimensions returns K.
func (s *Store) Dimensions() int {
	return s.dim
}

// SignatureSlots returns the length of every signed record's signature.
func (s *Store) SignatureSlots() int {
	return s.signatureSlots
}

// Logger returns the store logger.
func (s *Store) Logger() *Logger {
	return s.logger
}

// Tombstones returns a copy of the set of deleted ids.
func (s *Store) Tombstones() *roaring.Bitmap {
	return s.tombstones.Clone()
}

// Delete sets the tombstone on a record.
//
// Delete is idempotent: deleting an already deleted record returns nil and
// changes nothing. The only error is ErrRecordNotFound.
func (s *Store) Delete(id uint32) error {
	r, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("delete %d: %w", id, ErrRecordNotFound)
	}
	if r.deleted {
		return nil
	}
	r.deleted = true
	s.tombstones.Add(id)
	return nil
}

// NewVersion produces the replacement for a record whose attribute on axis
// changes to value.
//
// The new record shares title and signature with the old one and gets a
// fresh id. The old record is tombstoned and linked to the new one. The new
// record is returned so the caller can insert it into an index.
//
// Updating a deleted record is allowed as long as it has no successor yet.
func (s *Store) NewVersion(id uint32, axis int, value float64) (*Record, error) {
	old, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("update %d: %w", id, ErrRecordNotFound)
	}
	if old.superseded {
		return nil, fmt.Errorf("update %d: %w by %d", id, ErrRecordSuperseded, old.successor)
	}
	if axis < 0 || axis >= s.dim {
		return nil, fmt.Errorf("update %d: %w: %d", id, ErrInvalidAxis, axis)
	}

	vector := append([]float64(nil), old.vector...)
	vector[axis] = value
	if err := validateDraft(RecordDraft{Title: old.title, Vector: vector}, s.dim, s.signatureSlots); err != nil {
		return nil, fmt.Errorf("update %d: %w", id, err)
	}

	r := s.newRecord(old.title, vector, old.signature)
	s.versions = append(s.versions, r)

	old.successor = r.id
	old.superseded = true
	if !old.deleted {
		old.deleted = true
		s.tombstones.Add(id)
	}

	s.logger.WithRecord(id).Info("record superseded",
		"successor", r.id, "axis", axis, "old", old.vector[axis], "new", value)
	return r, nil
}

// Latest follows the superseded-by chain from id to the newest version.
func (s *Store) Latest(id uint32) (*Record, error) {
	r, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("latest %d: %w", id, ErrRecordNotFound)
	}
	for r.superseded {
		r = s.all[r.successor]
	}
	return r, nil
}
