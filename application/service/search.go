// Package service provides the application services: the ingestion
// orchestrator, floorplan parsing, semantic search and the run registry.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
	"github.com/smartsense/smartsense/internal/database"
)

// SearchOption configures a search request.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit      int
	kind       property.ChunkKind
	propertyID string
	minScore   float64
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithChunkKind restricts matches to description or certificate chunks.
func WithChunkKind(kind property.ChunkKind) SearchOption {
	return func(c *searchConfig) { c.kind = kind }
}

// WithPropertyID restricts matches to one property.
func WithPropertyID(id string) SearchOption {
	return func(c *searchConfig) { c.propertyID = id }
}

// WithMinScore drops matches scoring below s.
func WithMinScore(s float64) SearchOption {
	return func(c *searchConfig) {
		if s >= 0 {
			c.minScore = s
		}
	}
}

func (c searchConfig) filters(limit int) search.Filters {
	return search.NewFilters(
		search.WithLimit(limit),
		search.WithChunkKind(c.kind),
		search.WithPropertyID(c.propertyID),
		search.WithMinScore(c.minScore),
	)
}

// PropertyMatch is one property ranked by a semantic query.
type PropertyMatch struct {
	PropertyID string
	Score      float64
	Best       search.Hit
	Record     *property.Record
}

// Search answers semantic queries over the indexed chunks.
type Search struct {
	embedder search.Embedder
	searcher search.Searcher
	records  property.RecordReader
	fusion   search.Fusion
	limit    int
	logger   *slog.Logger
}

// NewSearch creates a Search. records may be nil, in which case matches
// carry no stored record.
func NewSearch(embedder search.Embedder, searcher search.Searcher, records property.RecordReader, limit int, logger *slog.Logger) *Search {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		embedder: embedder,
		searcher: searcher,
		records:  records,
		fusion:   search.NewFusion(),
		limit:    limit,
		logger:   logger,
	}
}

func (s *Search) config(opts []SearchOption) searchConfig {
	cfg := searchConfig{limit: s.limit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Chunks returns the chunks nearest to text.
func (s *Search) Chunks(ctx context.Context, text string, opts ...SearchOption) ([]search.Hit, error) {
	cfg := s.config(opts)
	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	hits, err := s.searcher.Search(ctx, vector, cfg.filters(cfg.limit))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

// Properties ranks properties for text. Description and certificate hits
// are ranked separately and fused, so a property matching in both ranks
// above one matching only once.
func (s *Search) Properties(ctx context.Context, text string, opts ...SearchOption) ([]PropertyMatch, error) {
	cfg := s.config(opts)
	vector, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	kinds := []property.ChunkKind{property.ChunkDescription, property.ChunkCertificate}
	if cfg.kind != "" {
		kinds = []property.ChunkKind{cfg.kind}
	}

	// Over-fetch so that one property's chunks do not crowd out others.
	fetch := cfg.limit * 4
	lists := make([][]search.Hit, 0, len(kinds))
	for _, kind := range kinds {
		kc := cfg
		kc.kind = kind
		hits, err := s.searcher.Search(ctx, vector, kc.filters(fetch))
		if err != nil {
			return nil, fmt.Errorf("vector search %s: %w", kind, err)
		}
		lists = append(lists, hits)
	}

	ranked := s.fusion.FuseTopK(cfg.limit, lists...)
	matches := make([]PropertyMatch, 0, len(ranked))
	for _, r := range ranked {
		m := PropertyMatch{PropertyID: r.PropertyID(), Score: r.Score(), Best: r.Best()}
		if s.records != nil {
			rec, err := s.records.Find(ctx, r.PropertyID())
			switch {
			case err == nil:
				m.Record = &rec
			case errors.Is(err, database.ErrNotFound):
				s.logger.DebugContext(ctx, "indexed property has no record", slog.String("property_id", r.PropertyID()))
			default:
				return nil, fmt.Errorf("find property %s: %w", r.PropertyID(), err)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *Search) embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return vectors[0], nil
}
