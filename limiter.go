package meridian

// sanitizeK ensures k is within valid bounds [1, maxResults].
//
// If k is <= 0 or exceeds maxResults, it returns maxResults.
// Range searches use this so that a zero limit means "everything".
//
// Usage:
//
//	k := sanitizeK(requestedK, len(results))
//	return results[:k]
func sanitizeK(k, maxResults int) int {
	if k <= 0 || k > maxResults {
		return maxResults
	}
	return k
}

// clampK bounds k to [0, maxResults]. Unlike sanitizeK a non-positive k
// yields zero results; the kNN ranker and LSH filter promise "at most k".
func clampK(k, maxResults int) int {
	if k <= 0 {
		return 0
	}
	if k > maxResults {
		return maxResults
	}
	return k
}

// limitRecords applies sanitizeK to a record slice.
func limitRecords(results []*Record, k int) []*Record {
	k = sanitizeK(k, len(results))
	return results[:k]
}

// autocutNeighbors applies the Autocut algorithm to a distance-sorted
// neighbor list.
//
// Parameters:
//   - neighbors: ranked neighbors, ascending distance
//   - cutoff: number of extrema to find before cutting (-1 disables autocut)
//
// Returns the neighbors up to the autocut point, or all of them when cutoff
// is -1.
func autocutNeighbors(neighbors []Neighbor, cutoff int) []Neighbor {
	if cutoff == -1 || len(neighbors) == 0 {
		return neighbors
	}

	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		distances[i] = n.Distance
	}

	return neighbors[:Autocut(distances, cutoff)]
}

// Autocut determines an optimal cutoff point in a sorted score distribution.
//
// It compares the normalized scores against the ideal linear distribution and
// looks for local maxima of the difference. Returns the index before the
// Nth extremum where N is cutOff.
//
// Parameters:
//   - yValues: sorted score values (typically distances)
//   - cutOff: number of extrema to encounter before cutting
//
// Returns the index at which to cut the results.
func Autocut(yValues []float64, cutOff int) int {
	if len(yValues) <= 2 {
		return len(yValues)
	}

	span := yValues[len(yValues)-1] - yValues[0]
	if span == 0 {
		return len(yValues)
	}

	diff := make([]float64, len(yValues))
	step := 1. / (float64(len(yValues)) - 1.)

	for i := range yValues {
		xValue := float64(i) * step
		yValueNorm := (yValues[i] - yValues[0]) / span
		diff[i] = yValueNorm - xValue
	}

	extremaCount := 0
	for i := 1; i < len(diff); i++ {
		if i == len(diff)-1 {
			// last element has no successor
			if diff[i] > diff[i-1] && diff[i] > diff[i-2] {
				extremaCount++
				if extremaCount >= cutOff {
					return i
				}
			}
			continue
		}
		if diff[i] > diff[i-1] && diff[i] > diff[i+1] {
			extremaCount++
			if extremaCount >= cutOff {
				return i
			}
		}
	}
	return len(yValues)
}
