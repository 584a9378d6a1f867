package detection

import (
	"fmt"
	"sort"
)

// Box is one detection in letterboxed input coordinates.
type Box struct {
	X1, Y1, X2, Y2 float32
	Score          float32
	Class          int
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float32 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection over union of two boxes.
func IoU(a, b Box) float32 {
	x1, y1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	x2, y2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	inter := Box{X1: x1, Y1: y1, X2: x2, Y2: y2}.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// DecodeOutput turns a YOLOv8-style head into candidate boxes. shape is
// either [1, 4+C, N] (the exported default) or [1, N, 4+C]. Each anchor
// keeps its best class when that score reaches confidence.
func DecodeOutput(data []float32, shape []int64, numClasses int, confidence float32) ([]Box, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	attrs := int64(4 + numClasses)

	var anchors int64
	var at func(anchor, attr int64) float32
	switch {
	case shape[1] == attrs:
		anchors = shape[2]
		at = func(i, a int64) float32 { return data[a*anchors+i] }
	case shape[2] == attrs:
		anchors = shape[1]
		at = func(i, a int64) float32 { return data[i*attrs+a] }
	default:
		return nil, fmt.Errorf("output shape %v does not match %d classes", shape, numClasses)
	}
	if int64(len(data)) < anchors*attrs {
		return nil, fmt.Errorf("output has %d values, want %d", len(data), anchors*attrs)
	}

	var boxes []Box
	for i := int64(0); i < anchors; i++ {
		best, score := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(i, int64(4+c)); s > score {
				best, score = c, s
			}
		}
		if best < 0 || score < confidence {
			continue
		}
		cx, cy, w, h := at(i, 0), at(i, 1), at(i, 2), at(i, 3)
		boxes = append(boxes, Box{
			X1:    cx - w/2,
			Y1:    cy - h/2,
			X2:    cx + w/2,
			Y2:    cy + h/2,
			Score: score,
			Class: best,
		})
	}
	return boxes, nil
}

// NMS applies class-wise non-maximum suppression: within a class, a box
// overlapping a higher-scoring kept box by more than iou is dropped.
func NMS(boxes []Box, iou float32) []Box {
	sorted := append([]Box(nil), boxes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]Box, 0, len(sorted))
	for _, b := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == b.Class && IoU(k, b) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

// Labels maps boxes to class names. Classes without a name are reported
// as "class_<index>".
func Labels(boxes []Box, names []string) []string {
	labels := make([]string, len(boxes))
	for i, b := range boxes {
		if b.Class >= 0 && b.Class < len(names) && names[b.Class] != "" {
			labels[i] = names[b.Class]
			continue
		}
		labels[i] = fmt.Sprintf("class_%d", b.Class)
	}
	return labels
}
