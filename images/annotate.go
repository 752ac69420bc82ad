package images

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/debris/common"
)

// BoxColors is the per-class palette, cycled by class index: green, blue, red, yellow,
// magenta, cyan.
var BoxColors = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 0},
	{R: 0, G: 0, B: 255, A: 0},
	{R: 255, G: 0, B: 0, A: 0},
	{R: 255, G: 255, B: 0, A: 0},
	{R: 255, G: 0, B: 255, A: 0},
	{R: 0, G: 255, B: 255, A: 0},
}

var textColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}

const (
	boxThickness = 2
	fontScale    = 0.5
	fontFace     = gocv.FontHersheySimplex
)

// ColorFor returns the palette colour of a class.
func ColorFor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return BoxColors[class%len(BoxColors)]
}

// LabelText is the caption drawn above a box, e.g. "space_debris 0.87".
func LabelText(det common.BoundingBox) string {
	return fmt.Sprintf("%s %.2f", det.Label, det.Confidence)
}

// Annotate draws every detection on mat: a coloured box and a filled caption bar above it
// with white text.
//
// Arguments:
//   - mat: A BGR frame, modified in place.
//   - dets: Detections in mat pixel coordinates.
func Annotate(mat *gocv.Mat, dets []common.BoundingBox) {
	for _, det := range dets {
		c := ColorFor(det.ClassID)
		r := det.ToRect()
		gocv.Rectangle(mat, r, c, boxThickness)

		label := LabelText(det)
		size := gocv.GetTextSize(label, fontFace, fontScale, 1)
		bar := image.Rect(r.Min.X, r.Min.Y-size.Y-6, r.Min.X+size.X, r.Min.Y)
		gocv.Rectangle(mat, bar, c, -1)
		gocv.PutTextWithParams(mat, label, image.Pt(r.Min.X, r.Min.Y-4),
			fontFace, fontScale, textColor, 1, gocv.LineAA, false)
	}
}
