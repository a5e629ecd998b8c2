package meridian

import "sort"

// Neighbor pairs a candidate record with its distance to the target.
type Neighbor struct {
	Record   *Record
	Distance float64
}

// KNNRanker orders range-query candidates by distance to a target record.
//
// The ranker never searches the store on its own: it ranks exactly the
// candidates it is given, typically the output of a RangeQuery. The target
// itself is always excluded by id, even when it appears among the candidates.
type KNNRanker struct {
	distance Distance

	// cutoff is the Autocut extremum count, -1 when disabled.
	cutoff int
}

// NewKNNRanker creates a ranker using distance.
func NewKNNRanker(distance Distance) *KNNRanker {
	return &KNNRanker{
		distance: distance,
		cutoff:   -1,
	}
}

// NewScaledKNNRanker creates a Euclidean ranker that divides axis i by
// scales[i] first.
//
// Example:
//
//	// budget in dollars, popularity, runtime in minutes
//	ranker, err := NewScaledKNNRanker([]float64{1e6, 1, 1})
func NewScaledKNNRanker(scales []float64) (*KNNRanker, error) {
	distance, err := NewScaledDistance(Euclidean, scales)
	if err != nil {
		return nil, err
	}
	return NewKNNRanker(distance), nil
}

// WithAutocut trims each ranking at the given Autocut extremum count after
// the k limit. -1 disables it.
func (r *KNNRanker) WithAutocut(cutoff int) *KNNRanker {
	r.cutoff = cutoff
	return r
}

// Distance returns the metric used for ranking.
func (r *KNNRanker) Distance() Distance {
	return r.distance
}

// Rank returns at most k neighbors of target among candidates, by ascending
// distance. Equal distances keep candidate order. Candidates sharing the
// target's id, or with a different dimensionality, are skipped.
//
// A nil target, empty candidates or k <= 0 yield no neighbors.
func (r *KNNRanker) Rank(target *Record, candidates []*Record, k int) []Neighbor {
	if target == nil || len(candidates) == 0 || k <= 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.id == target.id || c.Dimensions() != target.Dimensions() {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Record:   c,
			Distance: r.distance.Calculate(target.vector, c.vector),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	neighbors = neighbors[:clampK(k, len(neighbors))]
	return autocutNeighbors(neighbors, r.cutoff)
}
