package floorplan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountLabels(t *testing.T) {
	d := CountLabels([]string{"door", "window", "door", "room", "door"})

	assert.True(t, d.OK())
	assert.Equal(t, 3, d.Count("door"))
	assert.Equal(t, 5, d.Total())
	assert.Equal(t, []string{"door", "room", "window"}, d.Classes())
}

func TestDetection_MarshalCounts(t *testing.T) {
	data, err := json.Marshal(Counted(map[string]int{"room": 2, "door": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":2,"door":1}`, string(data))

	data, err = json.Marshal(Counted(nil))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestDetection_MarshalFailures(t *testing.T) {
	data, err := json.Marshal(ImageNotFound())
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"image_not_found"}`, string(data))

	data, err = json.Marshal(Failed(ReasonInferenceError, "bad tensor"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"inference_error","message":"bad tensor"}`, string(data))
}

func TestParse_RoundTrip(t *testing.T) {
	for _, d := range []Detection{
		Counted(map[string]int{"kitchen": 1}),
		Failed(ReasonModelLoadError, "missing weights"),
		ImageNotFound(),
	} {
		data, err := json.Marshal(d)
		require.NoError(t, err)

		parsed, err := Parse(data)
		require.NoError(t, err)
		assert.True(t, d.Equal(parsed), string(data))
	}
}

func TestParse_ClassNamedError(t *testing.T) {
	d := Counted(map[string]int{"door": 2, "error": 1})
	data, err := json.Marshal(d)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed.OK())
	assert.Equal(t, 1, parsed.Count("error"))
	assert.Equal(t, 2, parsed.Count("door"))
	assert.True(t, d.Equal(parsed))
}

func TestParse_EmptyAndInvalid(t *testing.T) {
	d, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, d.OK())

	_, err = Parse([]byte(`{"room":"many"}`))
	assert.Error(t, err)
}

func TestFailedDetectionHasNoCounts(t *testing.T) {
	d := Failed(ReasonInferenceError, "x")
	assert.False(t, d.OK())
	assert.Nil(t, d.Counts())
	assert.Equal(t, ReasonInferenceError, d.Reason())
}

func TestUnavailable(t *testing.T) {
	d := Unavailable{}.Detect(context.Background(), "plan.png")
	assert.Equal(t, ReasonModelLoadError, d.Reason())
	assert.Equal(t, ErrNoModel.Error(), d.Message())
}
