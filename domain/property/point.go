package property

import (
	"context"
	"slices"
)

// Distance is the similarity metric of a vector collection.
type Distance string

// Distance values.
const (
	DistanceCosine    Distance = "cosine"
	DistanceDot       Distance = "dot"
	DistanceEuclidean Distance = "euclid"
)

// Point payload keys, shared by every vector index implementation.
const (
	PayloadText       = "text"
	PayloadPropertyID = "property_id"
	PayloadChunkType  = "chunk_type"
)

// Point is one embedded chunk. IDs are fresh per run and unrelated to
// the property ID.
type Point struct {
	id     string
	vector []float32
	chunk  Chunk
}

// NewPoint creates a Point.
func NewPoint(id string, vector []float32, chunk Chunk) Point {
	return Point{id: id, vector: slices.Clone(vector), chunk: chunk}
}

// ID returns the point identifier.
func (p Point) ID() string { return p.id }

// Vector returns a copy of the embedding.
func (p Point) Vector() []float32 { return slices.Clone(p.vector) }

// Chunk returns the embedded chunk.
func (p Point) Chunk() Chunk { return p.chunk }

// Payload returns the metadata stored alongside the vector.
func (p Point) Payload() map[string]string {
	return map[string]string{
		PayloadText:       p.chunk.text,
		PayloadPropertyID: p.chunk.propertyID,
		PayloadChunkType:  string(p.chunk.kind),
	}
}

// VectorIndex is the vector side of the pipeline. Every run drops the
// collection and rebuilds it from scratch.
type VectorIndex interface {
	// Reset drops the collection if it exists and recreates it empty.
	Reset(ctx context.Context, dimension int, distance Distance) error

	// Upload writes all points in one request and returns once the store
	// has acknowledged them. An empty slice performs no request.
	Upload(ctx context.Context, points []Point) error
}
