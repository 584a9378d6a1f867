package search

import "sort"

// Fusion ranks properties from several ranked hit lists using Reciprocal
// Rank Fusion. A property that ranks well for both its description and its
// certificates beats one that matches only once.
type Fusion struct {
	k float64
}

// NewFusion creates a Fusion with the usual RRF constant of 60.
func NewFusion() Fusion {
	return Fusion{k: 60.0}
}

// NewFusionWithK creates a Fusion with a custom RRF constant.
func NewFusionWithK(k float64) Fusion {
	if k <= 0 {
		k = 60.0
	}
	return Fusion{k: k}
}

// K returns the RRF constant.
func (f Fusion) K() float64 { return f.k }

// RankedProperty is one fused result.
type RankedProperty struct {
	propertyID string
	score      float64
	best       Hit
}

// PropertyID returns the property.
func (r RankedProperty) PropertyID() string { return r.propertyID }

// Score returns the fused RRF score.
func (r RankedProperty) Score() float64 { return r.score }

// Best returns the highest-scoring hit for the property across all lists.
func (r RankedProperty) Best() Hit { return r.best }

// Fuse combines hit lists, each sorted by score descending. Within a list
// only a property's first (best) hit counts, so several chunks of one
// property do not inflate its rank.
func (f Fusion) Fuse(lists ...[]Hit) []RankedProperty {
	scores := make(map[string]float64)
	best := make(map[string]Hit)

	for _, list := range lists {
		seen := make(map[string]bool)
		rank := 0
		for _, hit := range list {
			id := hit.Chunk().PropertyID()
			if seen[id] {
				continue
			}
			seen[id] = true
			scores[id] += 1.0 / (f.k + float64(rank))
			if b, ok := best[id]; !ok || hit.Score() > b.Score() {
				best[id] = hit
			}
			rank++
		}
	}

	results := make([]RankedProperty, 0, len(scores))
	for id, score := range scores {
		results = append(results, RankedProperty{propertyID: id, score: score, best: best[id]})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].propertyID < results[j].propertyID
	})
	return results
}

// FuseTopK fuses and keeps at most topK results (all when topK <= 0).
func (f Fusion) FuseTopK(topK int, lists ...[]Hit) []RankedProperty {
	results := f.Fuse(lists...)
	if topK <= 0 || topK >= len(results) {
		return results
	}
	return results[:topK]
}
