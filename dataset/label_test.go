package dataset

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
)

func TestParseLabelLineCenteredSatellite(t *testing.T) {
	l, err := ParseLabelLine("1 0.5 0.5 0.2 0.3", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Class)
	assert.Equal(t, "statelites", DefaultClasses[l.Class])
	assert.InDelta(t, 0.5, l.Box.CenterX, 1e-6)
	assert.InDelta(t, 0.5, l.Box.CenterY, 1e-6)
	assert.InDelta(t, 0.2, l.Box.Width, 1e-6)
	assert.InDelta(t, 0.3, l.Box.Height, 1e-6)

	px := l.Box.ToPixels(640, 480)
	assert.InDelta(t, 256, px.X1, 1e-3)
	assert.InDelta(t, 168, px.Y1, 1e-3)
	assert.InDelta(t, 384, px.X2, 1e-3)
	assert.InDelta(t, 312, px.Y2, 1e-3)
}

func TestLabelRect(t *testing.T) {
	l, err := ParseLabelLine("0 0.5 0.5 0.25 0.5", 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(37, 25, 62, 75), l.Rect(100, 100))

	edge, err := ParseLabelLine("0 0 0 0.5 0.5", 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 25, 25), edge.Rect(100, 100))
}

func TestParseLabelLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"class equal to nc", "3 0.5 0.5 0.2 0.3", common.ErrClassOutOfRange},
		{"negative class", "-1 0.5 0.5 0.2 0.3", common.ErrClassOutOfRange},
		{"too few fields", "1 0.5 0.5 0.2", common.ErrFieldCount},
		{"too many fields", "1 0.5 0.5 0.2 0.3 0.9", common.ErrFieldCount},
		{"float class", "1.0 0.5 0.5 0.2 0.3", common.ErrNotANumber},
		{"word coordinate", "1 half 0.5 0.2 0.3", common.ErrNotANumber},
		{"coordinate above one", "1 1.01 0.5 0.2 0.3", common.ErrCoordinateRange},
		{"negative coordinate", "1 0.5 0.5 -0.2 0.3", common.ErrCoordinateRange},
		{"nan coordinate", "1 0.5 NaN 0.2 0.3", common.ErrCoordinateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabelLine(tt.line, 3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseLabelLineBoundaries(t *testing.T) {
	l, err := ParseLabelLine("0\t0 1 0 1", 3)
	require.NoError(t, err)
	assert.True(t, l.Box.InBounds())
	assert.True(t, l.Box.Empty())
}

func TestReadLabelFile(t *testing.T) {
	f := newFixture(t)
	path := f.write("labels/a.txt", "0 0.1 0.1 0.05 0.05\n\n3 0.5 0.5 0.2 0.3\n2 0.9 0.9 0.1 0.1\n1 0.5\n")

	labels, err := ReadLabelFile(path, 3)
	require.Len(t, labels, 2)
	assert.Equal(t, 0, labels[0].Class)
	assert.Equal(t, 2, labels[1].Class)

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrClassOutOfRange))
	assert.True(t, errors.Is(err, common.ErrFieldCount))

	var lblErr *common.LabelError
	require.True(t, errors.As(err, &lblErr))
	assert.Equal(t, path, lblErr.Path)
	assert.Equal(t, 3, lblErr.Line)
}

func TestReadLabelFileEmpty(t *testing.T) {
	f := newFixture(t)
	labels, err := ReadLabelFile(f.write("labels/empty.txt", ""), 3)
	assert.NoError(t, err)
	assert.Empty(t, labels)
}
