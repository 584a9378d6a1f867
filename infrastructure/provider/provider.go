// Package provider adapts embedding backends to search.Embedder.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartsense/smartsense/domain/search"
)

// ErrDimensionMismatch indicates a vector of unexpected size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrCountMismatch indicates a backend returned a different number of
// vectors than texts.
var ErrCountMismatch = errors.New("embedding count mismatch")

// Embedder is a search.Embedder with a per-call input limit and a close
// hook for backend resources.
type Embedder interface {
	search.Embedder
	Capacity() int
	Close() error
}

// ProviderError describes a failed call to an embedding backend.
type ProviderError struct {
	operation string
	status    int
	message   string
	cause     error
}

// NewProviderError creates a ProviderError.
func NewProviderError(operation string, status int, message string, cause error) *ProviderError {
	return &ProviderError{operation: operation, status: status, message: message, cause: cause}
}

// Operation returns the failed operation name.
func (e *ProviderError) Operation() string { return e.operation }

// Status returns the HTTP status, zero when there was none.
func (e *ProviderError) Status() int { return e.status }

// Message returns the backend message.
func (e *ProviderError) Message() string { return e.message }

func (e *ProviderError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.operation, e.status, e.message)
	}
	return fmt.Sprintf("%s failed: %s", e.operation, e.message)
}

func (e *ProviderError) Unwrap() error { return e.cause }

// Batched splits Embed calls into slices no larger than the inner
// embedder's capacity and concatenates the results in input order.
type Batched struct {
	inner Embedder
}

// NewBatched wraps inner.
func NewBatched(inner Embedder) *Batched {
	return &Batched{inner: inner}
}

// Embed embeds every text, issuing as many inner calls as needed.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	size := b.inner.Capacity()
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Capacity reports no per-call limit.
func (b *Batched) Capacity() int { return 0 }

// Close closes the inner embedder.
func (b *Batched) Close() error { return b.inner.Close() }

// Checked rejects any vector whose length differs from the configured
// dimension.
type Checked struct {
	inner     search.Embedder
	dimension int
}

// NewChecked wraps inner with a dimension check.
func NewChecked(inner search.Embedder, dimension int) *Checked {
	return &Checked{inner: inner, dimension: dimension}
}

// Embed delegates and validates every returned vector.
func (c *Checked) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != c.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), c.dimension)
		}
	}
	return vecs, nil
}

// Dimension returns the enforced vector size.
func (c *Checked) Dimension() int { return c.dimension }

// Close closes the inner embedder when it has resources to release.
func (c *Checked) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

var (
	_ search.Embedder    = (*Checked)(nil)
	_ search.Dimensioned = (*Checked)(nil)
	_ Embedder           = (*Batched)(nil)
)
