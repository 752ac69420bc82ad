// Package video runs a detector over video files frame by frame and writes annotated
// copies.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/debris/images"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/profiler"
	"github.com/nvr-ai/debris/util"
)

// Codec is the FourCC of the written videos.
const Codec = "mp4v"

// Options configures video processing.
type Options struct {
	// Output is the root directory; each video gets its own subdirectory.
	Output string
	// ProgressEvery logs progress every N frames; 0 disables progress lines.
	ProgressEvery int
	// Profiler is optional.
	Profiler *profiler.Profiler
}

// Stats describes one processed video.
type Stats struct {
	Path   string
	Output string
	// Frames is the number of frames written.
	Frames int
	// DetectionFrames is the number of frames with at least one detection.
	DetectionFrames int
	Detections      int
	// TotalFrames is the frame count reported by the container, which may be 0 or approximate.
	TotalFrames int
	FPS         float64
	Width       int
	Height      int
	Interrupted bool
	Duration    time.Duration
}

// DetectionRate is the percentage of frames with detections.
func (s Stats) DetectionRate() float64 {
	return rate(s.DetectionFrames, s.Frames)
}

func rate(hits, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// OutputPath is where the annotated copy of videoPath goes:
// <outDir>/<stem>/<stem>_detected.mp4.
func OutputPath(outDir, videoPath string) string {
	stem := util.Stem(videoPath)
	return filepath.Join(outDir, stem, stem+"_detected.mp4")
}

type frameSource interface {
	Read(m *gocv.Mat) bool
}

type frameSink interface {
	Write(m gocv.Mat) error
}

// Process detects objects in every frame of the video at path and writes the annotated
// frames with the source frame rate and size.
//
// Arguments:
//   - ctx: Cancelling stops after the current frame; the output is finalized and the partial
//     stats are returned with the context error.
//   - p: The detector.
//   - path: The input video.
//   - opts: Output root and progress settings.
//
// Returns:
//   - Stats: What was processed.
//   - error: If the video cannot be opened or written.
func Process(ctx context.Context, p images.Predictor, path string, opts Options) (Stats, error) {
	log := logging.Module("video")
	stats := Stats{Path: path, Output: OutputPath(opts.Output, path)}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return stats, errors.Wrapf(err, "opening %s", path)
	}
	defer capture.Close()

	stats.FPS = capture.Get(gocv.VideoCaptureFPS)
	stats.Width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	stats.Height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	stats.TotalFrames = int(capture.Get(gocv.VideoCaptureFrameCount))
	if stats.Width <= 0 || stats.Height <= 0 {
		return stats, errors.Errorf("%s: no video stream", path)
	}
	if stats.FPS <= 0 {
		stats.FPS = 30
	}

	if err := os.MkdirAll(filepath.Dir(stats.Output), 0o755); err != nil {
		return stats, errors.Wrap(err, "creating output directory")
	}
	writer, err := gocv.VideoWriterFile(stats.Output, Codec, stats.FPS, stats.Width, stats.Height, true)
	if err != nil {
		return stats, errors.Wrapf(err, "creating %s", stats.Output)
	}
	defer writer.Close()

	log.Info("processing video",
		"path", path,
		"output", stats.Output,
		"fps", stats.FPS,
		"resolution", fmt.Sprintf("%dx%d", stats.Width, stats.Height),
		"total_frames", stats.TotalFrames)

	err = processFrames(ctx, log, p, capture, writer, &stats, opts)
	log.Info("video complete",
		"path", path,
		"frames", stats.Frames,
		"detection_frames", stats.DetectionFrames,
		"interrupted", stats.Interrupted,
		"took", stats.Duration.Truncate(time.Millisecond))
	return stats, err
}

func processFrames(ctx context.Context, log *slog.Logger, p images.Predictor, src frameSource, dst frameSink, stats *Stats, opts Options) error {
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			stats.Interrupted = true
			log.Warn("processing interrupted", "path", stats.Path, "frames", stats.Frames)
			return err
		}
		if !src.Read(&frame) || frame.Empty() {
			return nil
		}

		img, err := frame.ToImage()
		if err != nil {
			return errors.Wrapf(err, "frame %d", stats.Frames)
		}
		done := timer(opts.Profiler, "predict")
		dets, err := p.Predict(ctx, img)
		done()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return errors.Wrapf(err, "frame %d", stats.Frames)
		}
		if len(dets) > 0 {
			stats.DetectionFrames++
			stats.Detections += len(dets)
		}

		done = timer(opts.Profiler, "write")
		images.Annotate(&frame, dets)
		err = dst.Write(frame)
		done()
		if err != nil {
			return errors.Wrapf(err, "writing frame %d", stats.Frames)
		}
		stats.Frames++

		if opts.ProgressEvery > 0 && stats.Frames%opts.ProgressEvery == 0 {
			args := []any{"path", stats.Path, "frames", stats.Frames, "total", stats.TotalFrames}
			if stats.TotalFrames > 0 {
				args = append(args, "percent", rate(stats.Frames, stats.TotalFrames))
			}
			log.Info("progress", args...)
		}
	}
}

func timer(p *profiler.Profiler, op string) func() {
	if p == nil {
		return func() {}
	}
	return p.StartOperation(op)
}

// IsVideo reports whether name has a container extension the decoder is expected to read.
func IsVideo(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".avi", ".mov", ".mkv":
		return true
	}
	return false
}
