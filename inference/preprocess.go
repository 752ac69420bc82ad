package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// padValue is the grey the framework pads letterboxed images with.
const padValue = 114.0 / 255.0

// LetterboxResult describes how an image was placed in the square model input.
type LetterboxResult struct {
	// Scale is the resize ratio applied to the original image.
	Scale float32
	// PadX and PadY are the left and top padding in input pixels.
	PadX, PadY int
	// Width and Height are the original image dimensions.
	Width, Height int
}

// Letterbox resizes img to fit a size x size square without distortion, pads the rest with
// grey and writes the result to dst as CHW float32 in [0, 1].
//
// Arguments:
//   - img: The image to prepare.
//   - size: The model input edge in pixels.
//   - dst: The destination tensor data, at least 3*size*size floats.
//
// Returns:
//   - LetterboxResult: The mapping needed to bring boxes back to img.
//   - error: If img is empty or dst is too small.
func Letterbox(img image.Image, size int, dst []float32) (LetterboxResult, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return LetterboxResult{}, errors.New("empty image")
	}
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return LetterboxResult{}, errors.Errorf("destination holds %d floats, needs %d", len(dst), channelSize*3)
	}

	scale := min(float32(size)/float32(w), float32(size)/float32(h))
	nw := max(1, min(size, int(float32(w)*scale+0.5)))
	nh := max(1, min(size, int(float32(h)*scale+0.5)))
	lb := LetterboxResult{
		Scale:  scale,
		PadX:   (size - nw) / 2,
		PadY:   (size - nh) / 2,
		Width:  w,
		Height: h,
	}

	for i := range dst[:channelSize*3] {
		dst[i] = padValue
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(nw), uint(nh), img, resize.Bilinear)
	rb := resized.Bounds()

	if rgba, ok := resized.(*image.RGBA); ok {
		for y := 0; y < nh; y++ {
			row := rgba.Pix[y*rgba.Stride:]
			base := (y+lb.PadY)*size + lb.PadX
			for x := 0; x < nw; x++ {
				red[base+x] = float32(row[x*4]) / 255.0
				green[base+x] = float32(row[x*4+1]) / 255.0
				blue[base+x] = float32(row[x*4+2]) / 255.0
			}
		}
		return lb, nil
	}

	for y := 0; y < nh; y++ {
		base := (y+lb.PadY)*size + lb.PadX
		for x := 0; x < nw; x++ {
			r, g, bl, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			red[base+x] = float32(r>>8) / 255.0
			green[base+x] = float32(g>>8) / 255.0
			blue[base+x] = float32(bl>>8) / 255.0
		}
	}
	return lb, nil
}

// toOriginal maps an input-space coordinate back to the original image, clamped to limit.
func (lb LetterboxResult) toOriginal(v float32, pad int, limit int) float32 {
	o := (v - float32(pad)) / lb.Scale
	return min(max(o, 0), float32(limit))
}
