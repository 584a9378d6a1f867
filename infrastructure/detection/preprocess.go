package detection

import (
	"fmt"
	"image"
	"image/color"
	"os"

	// Registered decoders for floorplan scans.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// padGrey is the letterbox fill used by YOLO training pipelines.
var padGrey = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// DecodeImage reads and decodes an image file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}
	return img, nil
}

// Letterbox scales img to fit a size×size square keeping its aspect
// ratio, centres it on grey padding, and returns the pixels as a CHW RGB
// tensor in [0, 1].
func Letterbox(img image.Image, size int) []float32 {
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: padGrey}, image.Point{}, draw.Src)

	b := img.Bounds()
	scale := min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	offX, offY := (size-w)/2, (size-h)/2
	draw.BiLinear.Scale(canvas, image.Rect(offX, offY, offX+w, offY+h), img, b, draw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := canvas.PixOffset(x, y)
			p := y*size + x
			out[p] = float32(canvas.Pix[i]) / 255
			out[plane+p] = float32(canvas.Pix[i+1]) / 255
			out[2*plane+p] = float32(canvas.Pix[i+2]) / 255
		}
	}
	return out
}
