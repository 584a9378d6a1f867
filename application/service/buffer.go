package service

import (
	"slices"
	"sync"

	"github.com/smartsense/smartsense/domain/property"
)

// PointBuffer accumulates vector points for one run. Row workers add
// points concurrently; Points returns them ordered by row.
type PointBuffer struct {
	mu   sync.Mutex
	rows map[int][]property.Point
	n    int
}

// NewPointBuffer creates an empty PointBuffer.
func NewPointBuffer() *PointBuffer {
	return &PointBuffer{rows: make(map[int][]property.Point)}
}

// Add stores the points of one successful row, replacing any earlier
// points for the same row.
func (b *PointBuffer) Add(row int, points []property.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n += len(points) - len(b.rows[row])
	b.rows[row] = points
}

// Points returns every buffered point, ordered by row and then by chunk.
func (b *PointBuffer) Points() []property.Point {
	b.mu.Lock()
	defer b.mu.Unlock()

	indices := make([]int, 0, len(b.rows))
	for i := range b.rows {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	points := make([]property.Point, 0, b.n)
	for _, i := range indices {
		points = append(points, b.rows[i]...)
	}
	return points
}
