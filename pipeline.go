// Package meridian implements the query pipeline that chains a range query
// with kNN ranking and LSH similarity.
//
// WHAT IS THE PIPELINE?
// The pipeline is a facade over one spatial index and the two utilities
// that consume its output:
//  1. Range query: live records inside the box
//  2. kNN: the candidates nearest to a target in attribute space
//  3. LSH: the candidates whose text signature resembles the target's
//
// The target is either named explicitly or defaults to the first range
// result. Both the ranker and the filter are optional; a nil one skips its
// stage.
package meridian

import (
	"fmt"
	"math"
)

// PipelineResult holds the output of every stage.
type PipelineResult struct {
	// Target is the record ranked against; nil when none was named and the
	// range query came back empty.
	Target *Record

	Matches   []*Record
	Neighbors []Neighbor
	Similar   []SimilarityMatch
}

// PipelineSearch encapsulates the search context for a pipeline
type PipelineSearch interface {
	// WithBox sets the range-query box
	WithBox(box Box) PipelineSearch

	// WithTarget names the record to rank against
	WithTarget(id uint32) PipelineSearch

	// WithK sets the number of neighbors
	WithK(k int) PipelineSearch

	// Execute runs every stage and returns the results
	Execute() (*PipelineResult, error)
}

// Pipeline chains a range query with kNN ranking and LSH filtering.
type Pipeline struct {
	store  *Store
	index  SpatialIndex
	ranker *KNNRanker
	lsh    *LSHFilter
	logger *Logger
}

// NewPipeline creates a pipeline over an index built from store.
//
// Parameters:
//   - store: record owner, used to resolve explicit targets
//   - index: the range-query structure
//   - ranker: kNN stage (nil to skip)
//   - lsh: similarity stage (nil to skip); its bands must cover the store's
//     signature length
func NewPipeline(store *Store, index SpatialIndex, ranker *KNNRanker, lsh *LSHFilter) (*Pipeline, error) {
	if store == nil || index == nil {
		return nil, fmt.Errorf("pipeline requires a store and an index")
	}
	if index.Dimensions() != store.Dimensions() {
		return nil, fmt.Errorf("%w: index has %d axes, store has %d", ErrDimensionMismatch, index.Dimensions(), store.Dimensions())
	}
	if lsh != nil && lsh.bands.Length() != store.SignatureSlots() {
		return nil, fmt.Errorf("%w: filter bands cover %d slots, store signs with %d",
			ErrSignatureLength, lsh.bands.Length(), store.SignatureSlots())
	}
	return &Pipeline{
		store:  store,
		index:  index,
		ranker: ranker,
		lsh:    lsh,
		logger: store.Logger().WithIndex(index.Kind()),
	}, nil
}

// Index returns the underlying spatial index.
func (p *Pipeline) Index() SpatialIndex {
	return p.index
}

// NewSearch creates a new pipeline search builder.
// Defaults: unbounded box, target = first match, k = 5.
func (p *Pipeline) NewSearch() PipelineSearch {
	return &pipelineSearch{
		pipeline: p,
		box:      UnboundedBox(p.index.Dimensions()),
		k:        5,
	}
}

// Compile-time check to ensure pipelineSearch implements PipelineSearch
var _ PipelineSearch = (*pipelineSearch)(nil)

type pipelineSearch struct {
	pipeline  *Pipeline
	box       Box
	target    uint32
	hasTarget bool
	k         int
}

func (s *pipelineSearch) WithBox(box Box) PipelineSearch {
	s.box = box.Clone()
	return s
}

func (s *pipelineSearch) WithTarget(id uint32) PipelineSearch {
	s.target = id
	s.hasTarget = true
	return s
}

func (s *pipelineSearch) WithK(k int) PipelineSearch {
	s.k = k
	return s
}

// Execute runs the range query, then ranks and filters its output.
func (s *pipelineSearch) Execute() (*PipelineResult, error) {
	p := s.pipeline

	matches, err := p.index.NewSearch().WithBox(s.box).Execute()
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	result := &PipelineResult{Matches: matches}

	switch {
	case s.hasTarget:
		target, ok := p.store.Get(s.target)
		if !ok {
			return nil, fmt.Errorf("target %d: %w", s.target, ErrRecordNotFound)
		}
		result.Target = target
	case len(matches) > 0:
		result.Target = matches[0]
	}

	if result.Target != nil && p.ranker != nil {
		result.Neighbors = p.ranker.Rank(result.Target, matches, s.k)
	}
	if result.Target != nil && p.lsh != nil {
		similar, err := p.lsh.Candidates(result.Target, matches)
		if err != nil {
			return nil, fmt.Errorf("lsh: %w", err)
		}
		result.Similar = similar
	}

	p.logger.Debug("pipeline executed",
		"matches", len(result.Matches),
		"neighbors", len(result.Neighbors),
		"similar", len(result.Similar),
		"bounded", !isUnbounded(s.box))
	return result, nil
}

func isUnbounded(box Box) bool {
	for d := range box.Min {
		if !math.IsInf(box.Min[d], -1) || !math.IsInf(box.Max[d], 1) {
			return false
		}
	}
	return true
}
