// Package search provides the embedding and vector search contracts used
// to query indexed property chunks.
package search

import "context"

// Embedder converts text into embedding vectors: one vector per input,
// in input order, all of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Dimensioned reports the vector size an Embedder produces.
type Dimensioned interface {
	Dimension() int
}
