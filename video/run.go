package video

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/images"
	"github.com/nvr-ai/debris/logging"
)

// ErrNoVideos is returned by Run when none of the requested files exists.
var ErrNoVideos = errors.New("no video files found")

// Summary aggregates a Run.
type Summary struct {
	Videos          []Stats
	Skipped         []string
	Frames          int
	DetectionFrames int
	Duration        time.Duration
}

// DetectionRate is the percentage of frames with detections over all videos.
func (s Summary) DetectionRate() float64 {
	return rate(s.DetectionFrames, s.Frames)
}

// Run processes each existing file in order. Missing files are skipped with a warning.
//
// Arguments:
//   - ctx: Cancellation finalizes the current video and stops.
//   - p: The detector.
//   - files: The videos to process.
//   - opts: Output root and progress settings.
//
// Returns:
//   - Summary: Per video stats and totals, also on error.
//   - error: ErrNoVideos, a processing failure, or the context error.
func Run(ctx context.Context, p images.Predictor, files []string, opts Options) (Summary, error) {
	log := logging.Module("video")
	start := time.Now()
	var sum Summary

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			log.Warn("video not found, skipping", "path", f)
			sum.Skipped = append(sum.Skipped, f)
			continue
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return sum, ErrNoVideos
	}
	log.Info("videos to process", "count", len(existing), "output", opts.Output)

	for _, f := range existing {
		stats, err := Process(ctx, p, f, opts)
		sum.add(stats)
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
	}
	sum.Duration = time.Since(start)

	log.Info("all videos processed",
		"videos", len(sum.Videos),
		"frames", sum.Frames,
		"detection_frames", sum.DetectionFrames,
		"detection_rate", sum.DetectionRate())
	if opts.Profiler != nil {
		opts.Profiler.Log(log)
	}
	return sum, nil
}

func (s *Summary) add(stats Stats) {
	s.Videos = append(s.Videos, stats)
	s.Frames += stats.Frames
	s.DetectionFrames += stats.DetectionFrames
}
