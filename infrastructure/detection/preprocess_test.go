package detection

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestLetterbox_PadsShortSide(t *testing.T) {
	img := solid(40, 20, color.RGBA{R: 255, A: 255})

	out := Letterbox(img, 8)
	require.Len(t, out, 3*8*8)

	plane := 64
	pixel := func(x, y int) (float32, float32, float32) {
		p := y*8 + x
		return out[p], out[plane+p], out[2*plane+p]
	}

	// 40x20 scales to 8x4, centred with two rows of padding above and below.
	r, g, b := pixel(4, 0)
	assert.InDelta(t, 114.0/255, r, 1e-6)
	assert.InDelta(t, 114.0/255, g, 1e-6)
	assert.InDelta(t, 114.0/255, b, 1e-6)

	r, g, b = pixel(4, 4)
	assert.InDelta(t, 1.0, r, 1e-6)
	assert.InDelta(t, 0.0, g, 1e-6)
	assert.InDelta(t, 0.0, b, 1e-6)

	r, _, _ = pixel(4, 7)
	assert.InDelta(t, 114.0/255, r, 1e-6)
}

func TestDecodeImage(t *testing.T) {
	path := writePNG(t, solid(3, 2, color.White))

	img, err := DecodeImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestDecodeImage_NotAnImage(t *testing.T) {
	_, err := DecodeImage(writeFile(t, "plan.png", "not an image"))
	assert.Error(t, err)
}
