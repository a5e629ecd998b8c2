// Package meridian implements LSH banding over MinHash signatures.
//
// WHAT IS LSH BANDING?
// A signature of length bands*rows is cut into `bands` consecutive bands of
// `rows` slots each. Two records are banding candidates when at least one
// band is identical slot for slot:
//
//	bands=5, rows=4: slots [0..3] [4..7] [8..11] [12..15] [16..19]
//
// With per-slot agreement probability s (the Jaccard similarity of the token
// sets), the candidate probability is 1 - (1 - s^rows)^bands, an S-curve that
// keeps similar pairs and drops most dissimilar ones cheaply.
//
// SIMILARITY:
// For a candidate pair the reported similarity is the fraction of equal
// slots over the whole signature, the MinHash estimate of Jaccard similarity.
//
// TWO ENTRY POINTS:
//   - LSHFilter checks a given candidate list (e.g. range-query output)
//   - LSHIndex keeps band buckets for the whole store and finds candidates
//     without a range query
package meridian

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

var (
	// ErrInvalidBandConfig is returned for non-positive bands or rows.
	ErrInvalidBandConfig = errors.New("invalid band configuration")

	// ErrSignatureLength is returned when a signature does not have
	// bands*rows slots.
	ErrSignatureLength = errors.New("signature length mismatch")
)

const (
	// DefaultLSHThreshold is the similarity a candidate must exceed.
	DefaultLSHThreshold = 0.3

	// DefaultLSHLimit caps the number of reported matches.
	DefaultLSHLimit = 5
)

// BandConfig describes how a signature is cut into bands.
type BandConfig struct {
	Bands int
	Rows  int
}

// DefaultBandConfig returns 5 bands of 4 rows, matching
// DefaultSignatureSlots.
func DefaultBandConfig() BandConfig {
	return BandConfig{Bands: 5, Rows: 4}
}

// Length returns the signature length the configuration expects.
func (c BandConfig) Length() int {
	return c.Bands * c.Rows
}

// Validate checks that bands and rows are positive.
func (c BandConfig) Validate() error {
	if c.Bands <= 0 || c.Rows <= 0 {
		return fmt.Errorf("%w: %d bands x %d rows", ErrInvalidBandConfig, c.Bands, c.Rows)
	}
	return nil
}

// check verifies a signature has the expected length.
func (c BandConfig) check(sig []uint32) error {
	if len(sig) != c.Length() {
		return fmt.Errorf("%w: expected %d slots, got %d", ErrSignatureLength, c.Length(), len(sig))
	}
	return nil
}

// Candidate reports whether some band of a and b matches exactly.
// Both signatures must have Length() slots.
func (c BandConfig) Candidate(a, b []uint32) bool {
	for band := 0; band < c.Bands; band++ {
		start := band * c.Rows
		match := true
		for r := start; r < start+c.Rows; r++ {
			if a[r] != b[r] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// bandKey encodes one band's rows as a map key.
func (c BandConfig) bandKey(sig []uint32, band int) string {
	buf := make([]byte, 4*c.Rows)
	for r := 0; r < c.Rows; r++ {
		binary.LittleEndian.PutUint32(buf[4*r:], sig[band*c.Rows+r])
	}
	return string(buf)
}

// Similarity returns the fraction of positions where a and b agree.
// Signatures of different or zero length have similarity 0.
func Similarity(a, b []uint32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// SimilarityMatch pairs a record with its signature similarity to a target.
type SimilarityMatch struct {
	Record     *Record
	Similarity float64
}

// LSHFilter selects text-similar records from a candidate list.
type LSHFilter struct {
	bands     BandConfig
	threshold float64
	limit     int
}

// NewLSHFilter creates a filter.
//
// Parameters:
//   - bands: band layout; signatures must have bands.Length() slots
//   - threshold: a match needs similarity strictly greater than this
//   - limit: maximum matches reported; <= 0 means no cap
func NewLSHFilter(bands BandConfig, threshold float64, limit int) (*LSHFilter, error) {
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0, 1], got %v", threshold)
	}
	return &LSHFilter{
		bands:     bands,
		threshold: threshold,
		limit:     limit,
	}, nil
}

// DefaultLSHFilter returns the 5x4 filter with threshold 0.3 and limit 5.
func DefaultLSHFilter() *LSHFilter {
	return &LSHFilter{
		bands:     DefaultBandConfig(),
		threshold: DefaultLSHThreshold,
		limit:     DefaultLSHLimit,
	}
}

// Bands returns the band layout.
func (f *LSHFilter) Bands() BandConfig {
	return f.bands
}

// Candidates returns the candidates that share a band with target and whose
// similarity exceeds the threshold, in input order, up to the limit.
// Candidates with the target's id are skipped, and so are unsigned ones.
// An unsigned target has no matches.
//
// Returns ErrSignatureLength if target or any examined candidate is signed
// with a length other than the band layout's, which only happens when the
// filter and the store disagree on the signature length.
func (f *LSHFilter) Candidates(target *Record, candidates []*Record) ([]SimilarityMatch, error) {
	if target == nil || len(target.signature) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	if err := f.bands.check(target.signature); err != nil {
		return nil, fmt.Errorf("target %d: %w", target.id, err)
	}

	var matches []SimilarityMatch
	for _, c := range candidates {
		if f.limit > 0 && len(matches) >= f.limit {
			break
		}
		if c == nil || c.id == target.id || len(c.signature) == 0 {
			continue
		}
		if err := f.bands.check(c.signature); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", c.id, err)
		}
		if !f.bands.Candidate(target.signature, c.signature) {
			continue
		}
		if sim := Similarity(target.signature, c.signature); sim > f.threshold {
			matches = append(matches, SimilarityMatch{Record: c, Similarity: sim})
		}
	}
	return matches, nil
}

// LSHIndex buckets the signatures of a store by band so that banding
// candidates can be found for any record without scanning.
//
// Each band has its own map from the band's rows to a roaring bitmap of the
// ids sharing them. Not safe for concurrent use.
type LSHIndex struct {
	store   *Store
	bands   BandConfig
	buckets []map[string]*roaring.Bitmap
	indexed *roaring.Bitmap
}

// NewLSHIndex creates an empty bucket index over store.
func NewLSHIndex(store *Store, bands BandConfig) (*LSHIndex, error) {
	if store == nil {
		return nil, fmt.Errorf("lsh index requires a store")
	}
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if bands.Length() != store.SignatureSlots() {
		return nil, fmt.Errorf("%w: bands cover %d slots, store signs with %d",
			ErrSignatureLength, bands.Length(), store.SignatureSlots())
	}
	buckets := make([]map[string]*roaring.Bitmap, bands.Bands)
	for i := range buckets {
		buckets[i] = make(map[string]*roaring.Bitmap)
	}
	return &LSHIndex{
		store:   store,
		bands:   bands,
		buckets: buckets,
		indexed: roaring.New(),
	}, nil
}

// Add files each record into one bucket per band. Records already added
// and unsigned records are ignored.
func (x *LSHIndex) Add(records ...*Record) error {
	for _, r := range records {
		if r == nil {
			return ErrNilRecord
		}
		if len(r.signature) == 0 {
			continue
		}
		if err := x.bands.check(r.signature); err != nil {
			return fmt.Errorf("record %d: %w", r.id, err)
		}
	}
	for _, r := range records {
		if len(r.signature) == 0 || !x.indexed.CheckedAdd(r.id) {
			continue
		}
		for band := range x.buckets {
			key := x.bands.bandKey(r.signature, band)
			bucket, ok := x.buckets[band][key]
			if !ok {
				bucket = roaring.New()
				x.buckets[band][key] = bucket
			}
			bucket.Add(r.id)
		}
	}
	return nil
}

// Len returns the number of signed records added.
func (x *LSHIndex) Len() int {
	return int(x.indexed.GetCardinality())
}

// CandidateIDs returns the live ids sharing at least one band with target,
// target excluded, restricted to filter when it is non-nil.
func (x *LSHIndex) CandidateIDs(target *Record, filter *RecordFilter) (*roaring.Bitmap, error) {
	if target == nil || len(target.signature) == 0 {
		return roaring.New(), nil
	}
	if err := x.bands.check(target.signature); err != nil {
		return nil, fmt.Errorf("target %d: %w", target.id, err)
	}

	ids := roaring.New()
	for band := range x.buckets {
		if bucket, ok := x.buckets[band][x.bands.bandKey(target.signature, band)]; ok {
			ids.Or(bucket)
		}
	}
	ids.Remove(target.id)
	ids.AndNot(x.store.tombstones)
	if filter != nil {
		ids.And(filter.bitmap)
	}
	return ids, nil
}

// Similar resolves the bucket candidates of target in ascending id order and
// passes them through f.
func (x *LSHIndex) Similar(target *Record, f *LSHFilter, filter *RecordFilter) ([]SimilarityMatch, error) {
	if f.bands != x.bands {
		return nil, fmt.Errorf("%w: filter uses %dx%d, index uses %dx%d",
			ErrInvalidBandConfig, f.bands.Bands, f.bands.Rows, x.bands.Bands, x.bands.Rows)
	}
	ids, err := x.CandidateIDs(target, filter)
	if err != nil {
		return nil, err
	}

	candidates := make([]*Record, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		if r, ok := x.store.Get(it.Next()); ok {
			candidates = append(candidates, r)
		}
	}
	return f.Candidates(target, candidates)
}
