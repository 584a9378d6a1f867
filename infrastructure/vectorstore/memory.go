package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/smartsense/smartsense/domain/property"
	"github.com/smartsense/smartsense/domain/search"
)

// Memory is an in-process vector index. It follows the same contract as
// Qdrant and is used when no vector server is configured.
type Memory struct {
	mu        sync.RWMutex
	ready     bool
	dimension int
	distance  property.Distance
	points    []property.Point
	uploads   int
}

// NewMemory creates an empty Memory index. Reset must be called before
// Upload.
func NewMemory() *Memory {
	return &Memory{}
}

// Reset discards every point and recreates the collection.
func (m *Memory) Reset(_ context.Context, dimension int, distance property.Distance) error {
	if dimension <= 0 {
		return fmt.Errorf("memory index: invalid dimension %d", dimension)
	}
	if _, err := qdrantDistance(distance); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	m.dimension = dimension
	m.distance = distance
	m.points = nil
	return nil
}

// Upload appends points. Points with an existing ID replace it.
func (m *Memory) Upload(ctx context.Context, points []property.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return fmt.Errorf("memory index: collection does not exist")
	}
	for _, p := range points {
		if len(p.Vector()) != m.dimension {
			return fmt.Errorf("memory index: point %s: %w: got %d, want %d", p.ID(), ErrDimension, len(p.Vector()), m.dimension)
		}
	}

	index := make(map[string]int, len(m.points))
	for i, p := range m.points {
		index[p.ID()] = i
	}
	for _, p := range points {
		if i, ok := index[p.ID()]; ok {
			m.points[i] = p
			continue
		}
		index[p.ID()] = len(m.points)
		m.points = append(m.points, p)
	}
	m.uploads++
	return nil
}

// Search ranks stored points against vector.
func (m *Memory) Search(ctx context.Context, vector []float32, filters search.Filters) ([]search.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]search.Hit, 0, len(m.points))
	for _, p := range m.points {
		if !filters.Matches(p.Chunk()) {
			continue
		}
		score := similarity(m.distance, vector, p.Vector())
		if filters.MinScore() > 0 && score < filters.MinScore() {
			continue
		}
		hits = append(hits, search.NewHit(p.ID(), score, p.Chunk()))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score() > hits[j].Score()
	})
	if limit := filters.Limit(); limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Points returns a copy of the stored points.
func (m *Memory) Points() []property.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]property.Point(nil), m.points...)
}

// Dimension returns the collection's vector size, zero before Reset.
func (m *Memory) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

// Uploads returns the number of non-empty Upload calls since creation.
func (m *Memory) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// similarity returns a higher-is-closer score for the metric.
func similarity(d property.Distance, a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}
	switch d {
	case property.DistanceDot:
		return dot(a, b)
	case property.DistanceEuclidean:
		var sum float64
		for i := range a {
			diff := float64(a[i]) - float64(b[i])
			sum += diff * diff
		}
		return -math.Sqrt(sum)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
