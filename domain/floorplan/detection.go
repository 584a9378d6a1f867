// Package floorplan models the floorplan detection result: per-class
// counts on success, a reason code on failure. Failures are data stored
// with the property, never errors raised to the caller.
package floorplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Reason classifies a failed detection.
type Reason string

// Reason values.
const (
	ReasonImageNotFound  Reason = "image_not_found"
	ReasonModelLoadError Reason = "model_load_error"
	ReasonInferenceError Reason = "inference_error"
)

// Detection is either a class-to-count mapping or a failure reason.
type Detection struct {
	counts  map[string]int
	reason  Reason
	message string
}

// Counted creates a successful Detection.
func Counted(counts map[string]int) Detection {
	c := maps.Clone(counts)
	if c == nil {
		c = map[string]int{}
	}
	return Detection{counts: c}
}

// CountLabels aggregates detected labels into counts. Order is irrelevant.
func CountLabels(labels []string) Detection {
	counts := make(map[string]int, len(labels))
	for _, l := range labels {
		counts[l]++
	}
	return Detection{counts: counts}
}

// Failed creates a failed Detection.
func Failed(reason Reason, message string) Detection {
	return Detection{reason: reason, message: message}
}

// ImageNotFound is the result for a row whose image is missing on disk.
func ImageNotFound() Detection {
	return Detection{reason: ReasonImageNotFound}
}

// OK reports whether detection succeeded.
func (d Detection) OK() bool { return d.reason == "" }

// Counts returns a copy of the class counts; nil on failure.
func (d Detection) Counts() map[string]int {
	if !d.OK() {
		return nil
	}
	return maps.Clone(d.counts)
}

// Count returns the count for one class.
func (d Detection) Count(class string) int { return d.counts[class] }

// Total returns the total number of detected objects.
func (d Detection) Total() int {
	n := 0
	for _, c := range d.counts {
		n += c
	}
	return n
}

// Classes returns the detected class names, sorted.
func (d Detection) Classes() []string {
	return slices.Sorted(maps.Keys(d.counts))
}

// Reason returns the failure reason, empty on success.
func (d Detection) Reason() Reason { return d.reason }

// Message returns the underlying failure message, if any.
func (d Detection) Message() string { return d.message }

// Equal reports whether two detections carry the same data.
func (d Detection) Equal(other Detection) bool {
	return d.reason == other.reason && d.message == other.message && maps.Equal(d.counts, other.counts)
}

type failureJSON struct {
	Error   Reason `json:"error"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes counts as a flat object, and failures as
// {"error": reason, "message": ...}.
func (d Detection) MarshalJSON() ([]byte, error) {
	if !d.OK() {
		return json.Marshal(failureJSON{Error: d.reason, Message: d.message})
	}
	if d.counts == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.counts)
}

// UnmarshalJSON decodes either form produced by MarshalJSON. Only a string
// "error" marks a failure; a numeric one is the count of a class named error.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode detection: %w", err)
	}
	var reason string
	if rawErr, ok := raw["error"]; ok && json.Unmarshal(rawErr, &reason) == nil {
		var f failureJSON
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode detection failure: %w", err)
		}
		*d = Failed(f.Error, f.Message)
		return nil
	}
	counts := make(map[string]int, len(raw))
	for k, v := range raw {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("decode count for %q: %w", k, err)
		}
		counts[k] = n
	}
	*d = Detection{counts: counts}
	return nil
}

// Parse decodes stored detection data. Empty input is an empty success.
func Parse(data []byte) (Detection, error) {
	if len(data) == 0 {
		return Counted(nil), nil
	}
	var d Detection
	if err := json.Unmarshal(data, &d); err != nil {
		return Detection{}, err
	}
	return d, nil
}

// Detector runs floorplan object detection on one image. Implementations
// never fail: every problem is reported as a failed Detection.
type Detector interface {
	Detect(ctx context.Context, imagePath string) Detection
}

// ErrNoModel indicates no detection model is configured.
var ErrNoModel = errors.New("no floorplan model configured")

// Unavailable is the Detector used when no model is configured.
type Unavailable struct{}

// Detect always reports a model load error.
func (Unavailable) Detect(context.Context, string) Detection {
	return Failed(ReasonModelLoadError, ErrNoModel.Error())
}
