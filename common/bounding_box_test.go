package common

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedBoxToPixelsClamps(t *testing.T) {
	n := NormalizedBox{CenterX: 0.9, CenterY: 0.1, Width: 0.5, Height: 0.5}
	b := n.ToPixels(200, 100)

	assert.InDelta(t, 130, b.X1, 1e-3)
	assert.InDelta(t, 0, b.Y1, 1e-3)
	assert.InDelta(t, 200, b.X2, 1e-3)
	assert.InDelta(t, 35, b.Y2, 1e-3)
}

func TestBoundingBoxNormalize(t *testing.T) {
	b := BoundingBox{X1: 320, Y1: 120, X2: 160, Y2: 360}
	n := b.Normalize(640, 480)

	assert.InDelta(t, 0.375, n.CenterX, 1e-6)
	assert.InDelta(t, 0.5, n.CenterY, 1e-6)
	assert.InDelta(t, 0.25, n.Width, 1e-6)
	assert.InDelta(t, 0.5, n.Height, 1e-6)
	assert.True(t, n.InBounds())
}

func TestBoundingBoxToRect(t *testing.T) {
	b := BoundingBox{X1: 10.7, Y1: 20.2, X2: 5.1, Y2: 40.9}
	assert.Equal(t, image.Rect(5, 20, 10, 40), b.ToRect())
	assert.Equal(t, 100, b.Area())
}

func TestNormalizedBoxInBounds(t *testing.T) {
	assert.True(t, NormalizedBox{0, 1, 0, 1}.InBounds())
	assert.False(t, NormalizedBox{0.5, 0.5, 1.2, 0.1}.InBounds())
	assert.True(t, NormalizedBox{0.5, 0.5, 0, 0.1}.Empty())
}
