package dataset

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/debris/common"
)

func TestScanSplit(t *testing.T) {
	f := newFixture(t)
	f.image("train/images/a.jpg")
	f.image("train/images/b.PNG")
	f.image("train/images/c.jpeg")
	f.write("train/labels/a.txt", "1 0.5 0.5 0.2 0.3\n")
	f.write("train/labels/b.txt", "")
	f.write("train/labels/z.txt", "0 0.5 0.5 0.2 0.3\n")

	s, err := ScanSplit(filepath.Join(f.root, "train", "images"))
	require.NoError(t, err)

	require.Len(t, s.Samples, 3)
	assert.Equal(t, filepath.Join(f.root, "train", "labels"), s.LabelDir)
	assert.Equal(t, filepath.Join(f.root, "train", "labels", "a.txt"), s.Samples[0].Label)
	assert.Empty(t, s.Samples[2].Label)
	assert.Equal(t, []string{filepath.Join(f.root, "train", "images", "c.jpeg")}, s.Unlabeled)
	assert.Equal(t, []string{filepath.Join(f.root, "train", "labels", "z.txt")}, s.Orphans)
}

func TestScanSplitWithoutLabelDir(t *testing.T) {
	f := newFixture(t)
	f.image("train/images/a.jpg")

	s, err := ScanSplit(filepath.Join(f.root, "train", "images"))
	require.NoError(t, err)
	assert.Len(t, s.Unlabeled, 1)
}

func TestValidateSharedSplit(t *testing.T) {
	f := newFixture(t)
	f.image("train/images/a.jpg")
	f.image("train/images/b.jpg")
	f.image("train/images/c.jpg")
	f.write("train/labels/a.txt", "1 0.5 0.5 0.2 0.3\n0 0.1 0.1 0.1 0.1\n")
	f.write("train/labels/b.txt", "2 0.5 0.5 0 0.3\n")

	d, err := LoadDescriptor(f.descriptor(defaultManifest))
	require.NoError(t, err)

	report, err := Validate(context.Background(), d, 4)
	require.NoError(t, err)
	require.NoError(t, report.Err())

	require.Len(t, report.Splits, 2)
	train, val := report.Splits[0], report.Splits[1]
	assert.Equal(t, "train", train.Name)
	assert.Equal(t, "val", val.Name)
	assert.Equal(t, 3, train.Images)
	assert.Equal(t, 2, train.Labeled)
	assert.Equal(t, 1, train.Background)
	assert.Equal(t, []int{1, 1, 1}, train.Instances)
	assert.Equal(t, 1, train.EmptyBoxes)
	assert.Equal(t, train.Instances, val.Instances)

	assert.Contains(t, report.Warnings[0], "same directory")

	var out bytes.Buffer
	require.NoError(t, report.WriteText(&out))
	assert.Contains(t, out.String(), "statelites")
	assert.Contains(t, out.String(), "no label file, counted as zero objects")
}

func TestValidateCollectsSortedErrors(t *testing.T) {
	f := newFixture(t)
	f.image("train/images/a.jpg")
	f.image("train/images/b.jpg")
	f.write("train/labels/b.txt", "3 0.5 0.5 0.2 0.3\n")
	f.write("train/labels/a.txt", "0 0.5 0.5 0.2 0.3\n1 2 0.5 0.2 0.3\n0 0.5\n")
	f.image("valid/images/v.jpg")
	f.write("valid/labels/v.txt", "1 0.5 0.5 0.2 0.3\n")

	d, err := LoadDescriptor(f.descriptor(`
train: train/images
val: valid/images
nc: 3
names: [space_debris, statelites, asteroids]
`))
	require.NoError(t, err)

	report, err := Validate(context.Background(), d, 1)
	require.NoError(t, err)

	require.Len(t, report.Errors, 3)
	a := filepath.Join(f.root, "train", "labels", "a.txt")
	b := filepath.Join(f.root, "train", "labels", "b.txt")
	assert.Equal(t, a, report.Errors[0].Path)
	assert.Equal(t, 2, report.Errors[0].Line)
	assert.Equal(t, a, report.Errors[1].Path)
	assert.Equal(t, 3, report.Errors[1].Line)
	assert.Equal(t, b, report.Errors[2].Path)

	err = report.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrClassOutOfRange))
	assert.True(t, errors.Is(err, common.ErrCoordinateRange))
	assert.Equal(t, common.ExitConfig, common.ExitCode(err))

	assert.Equal(t, []int{1, 0, 0}, report.Splits[0].Instances)
	assert.Equal(t, []int{0, 1, 0}, report.Splits[1].Instances)
	assert.Empty(t, report.Warnings)
}

func TestValidateCancelled(t *testing.T) {
	f := newFixture(t)
	f.image("train/images/a.jpg")
	f.write("train/labels/a.txt", "1 0.5 0.5 0.2 0.3\n")
	d, err := LoadDescriptor(f.descriptor(defaultManifest))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Validate(ctx, d, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
