package search

import (
	"context"

	"github.com/smartsense/smartsense/domain/property"
)

// Hit is one scored chunk returned by a vector search.
type Hit struct {
	id    string
	score float64
	chunk property.Chunk
}

// NewHit creates a Hit.
func NewHit(id string, score float64, chunk property.Chunk) Hit {
	return Hit{id: id, score: score, chunk: chunk}
}

// ID returns the point ID.
func (h Hit) ID() string { return h.id }

// Score returns the similarity score; higher is closer.
func (h Hit) Score() float64 { return h.score }

// Chunk returns the matched chunk.
func (h Hit) Chunk() property.Chunk { return h.chunk }

// Searcher performs nearest-neighbour search over indexed chunks.
type Searcher interface {
	Search(ctx context.Context, vector []float32, filters Filters) ([]Hit, error)
}
