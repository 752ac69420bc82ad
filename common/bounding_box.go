package common

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// NormalizedBox is a box in label-file form: center and size as fractions of the image
// width and height, independent of resolution.
type NormalizedBox struct {
	CenterX, CenterY, Width, Height float32
}

// InBounds reports whether every coordinate lies in [0, 1].
func (n NormalizedBox) InBounds() bool {
	for _, v := range [4]float32{n.CenterX, n.CenterY, n.Width, n.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Empty reports whether the box has no area.
func (n NormalizedBox) Empty() bool {
	return n.Width == 0 || n.Height == 0
}

// ToPixels scales the box to an image of the given size.
//
// Corners are clamped to the image so a box touching the border never leaves it.
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - BoundingBox: The box in pixel coordinates, without label or confidence.
//
// @example
// n := NormalizedBox{CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.3}
// b := n.ToPixels(640, 480) // (256, 168), (384, 312)
func (n NormalizedBox) ToPixels(width, height int) BoundingBox {
	w, h := float32(width), float32(height)
	return BoundingBox{
		X1: clamp((n.CenterX-n.Width/2)*w, w),
		Y1: clamp((n.CenterY-n.Height/2)*h, h),
		X2: clamp((n.CenterX+n.Width/2)*w, w),
		Y2: clamp((n.CenterY+n.Height/2)*h, h),
	}
}

func clamp(v, limit float32) float32 {
	return math32.Min(math32.Max(v, 0), limit)
}

// BoundingBox represents a bounding box with its label, confidence, and coordinates.
type BoundingBox struct {
	Label          string
	ClassID        int
	Confidence     float32
	X1, Y1, X2, Y2 float32
}

// Normalize converts the pixel box back to label-file form for an image of the given size.
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - NormalizedBox: The box as fractions of the image size.
func (b *BoundingBox) Normalize(width, height int) NormalizedBox {
	w, h := float32(width), float32(height)
	bw := math32.Abs(b.X2 - b.X1)
	bh := math32.Abs(b.Y2 - b.Y1)
	return NormalizedBox{
		CenterX: (math32.Min(b.X1, b.X2) + bw/2) / w,
		CenterY: (math32.Min(b.Y1, b.Y2) + bh/2) / h,
		Width:   bw / w,
		Height:  bh / h,
	}
}

func (b *BoundingBox) String() string {
	return fmt.Sprintf("Object %s (confidence %f): (%f, %f), (%f, %f)",
		b.Label, b.Confidence, b.X1, b.Y1, b.X2, b.Y2)
}

// This loses precision, but the box has already been scaled to the original image's
// dimensions, so it only loses fractional pixels around the edges.
func (b *BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// Area returns the area of b in pixels, after converting to an image.Rectangle.
func (b *BoundingBox) Area() int {
	size := b.ToRect().Size()
	return size.X * size.Y
}
