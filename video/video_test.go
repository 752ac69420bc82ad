package video

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/profiler"
)

// frames is a source of n black frames.
type frames struct {
	n, read int
}

func (f *frames) Read(m *gocv.Mat) bool {
	if f.read == f.n {
		return false
	}
	f.read++
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blank.CopyTo(m)
	return true
}

type sink struct {
	written int
	err     error
}

func (s *sink) Write(gocv.Mat) error {
	if s.err != nil {
		return s.err
	}
	s.written++
	return nil
}

// everyOther detects one object on odd calls.
type everyOther struct {
	calls  int
	cancel context.CancelFunc
	stopAt int
}

func (e *everyOther) Predict(_ context.Context, img image.Image) ([]common.BoundingBox, error) {
	e.calls++
	if e.cancel != nil && e.calls == e.stopAt {
		e.cancel()
	}
	if e.calls%2 == 1 {
		b := img.Bounds()
		return []common.BoundingBox{{Label: "space_debris", Confidence: 0.6, X1: 1, Y1: 10, X2: float32(b.Dx() / 2), Y2: float32(b.Dy() / 2)}}, nil
	}
	return nil, nil
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("Results", "chino_video", "chino_video_detected.mp4"),
		OutputPath("Results", filepath.Join("clips", "chino_video.mp4")))
}

func TestProcessFrames(t *testing.T) {
	src := &frames{n: 5}
	dst := &sink{}
	prof := profiler.New()
	stats := Stats{Path: "clip.mp4", TotalFrames: 5}

	err := processFrames(context.Background(), logging.Module("video"), &everyOther{}, src, dst, &stats,
		Options{ProgressEvery: 2, Profiler: prof})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Frames)
	assert.Equal(t, 3, stats.DetectionFrames)
	assert.Equal(t, 3, stats.Detections)
	assert.Equal(t, 5, dst.written)
	assert.False(t, stats.Interrupted)
	assert.InDelta(t, 60, stats.DetectionRate(), 1e-9)
	assert.Len(t, prof.Stats(), 2)
}

func TestProcessFramesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dst := &sink{}
	stats := Stats{Path: "clip.mp4"}
	err := processFrames(ctx, logging.Module("video"), &everyOther{cancel: cancel, stopAt: 3}, &frames{n: 10}, dst, &stats, Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stats.Interrupted)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 3, dst.written)
}

func TestProcessFramesWriteError(t *testing.T) {
	stats := Stats{}
	err := processFrames(context.Background(), logging.Module("video"), &everyOther{}, &frames{n: 2},
		&sink{err: errors.New("disk full")}, &stats, Options{})
	assert.Error(t, err)
	assert.Zero(t, stats.Frames)
}

func TestRunNoVideos(t *testing.T) {
	dir := t.TempDir()
	sum, err := Run(context.Background(), &everyOther{},
		[]string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.mp4")}, Options{Output: dir})
	assert.ErrorIs(t, err, ErrNoVideos)
	assert.Len(t, sum.Skipped, 2)
}

func TestProcessNotAVideo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not a video"), 0o644))

	_, err := Process(context.Background(), &everyOther{}, path, Options{Output: dir})
	assert.Error(t, err)
}

func TestSummaryDetectionRate(t *testing.T) {
	var s Summary
	assert.Zero(t, s.DetectionRate())
	s.add(Stats{Frames: 10, DetectionFrames: 2})
	s.add(Stats{Frames: 30, DetectionFrames: 8})
	assert.InDelta(t, 25, s.DetectionRate(), 1e-9)
	assert.Len(t, s.Videos, 2)
}
