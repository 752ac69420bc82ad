package video

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/inference"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/profiler"
	videoproc "github.com/nvr-ai/debris/video"
)

// Command creates the video command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video [file...]",
		Short: "Detect objects in video files and write annotated copies",
		Long: `Run the exported model on every frame and write <output>/<stem>/<stem>_detected.mp4
at the source frame rate and size. Missing files are skipped; Ctrl-C finalizes the video in
progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := ctx.Settings
			files := s.Video.Files
			if len(args) > 0 {
				files = args
			}
			if len(files) == 0 {
				return &common.ConfigError{Field: "video.files", Err: errors.New("no video files given")}
			}
			for _, f := range files {
				if !videoproc.IsVideo(f) {
					return &common.ConfigError{Field: "video.files", Err: errors.Errorf("unsupported video file %s", f)}
				}
			}

			metrics, writeMetrics, err := inference.NewTextfileMetrics(s.Inference.MetricsFile)
			if err != nil {
				return err
			}
			detector, err := inference.NewDetector(s.Inference.DetectorConfig(s.ClassNames(), metrics))
			if err != nil {
				return err
			}
			defer detector.Close()

			sum, err := videoproc.Run(cmd.Context(), detector, files, videoproc.Options{
				Output:        s.Video.Output,
				ProgressEvery: s.Video.ProgressEvery,
				Profiler:      profiler.New(),
			})
			out := cmd.OutOrStdout()
			for _, v := range sum.Videos {
				fmt.Fprintf(out, "%s: %d frames, %d with detections -> %s\n", v.Path, v.Frames, v.DetectionFrames, v.Output)
			}
			if sum.Frames > 0 {
				fmt.Fprintf(out, "Total frames processed: %d\nTotal frames with detections: %d\nDetection rate: %.2f%%\n",
					sum.Frames, sum.DetectionFrames, sum.DetectionRate())
			}
			if werr := writeMetrics(); werr != nil {
				logging.Module("video").Warn("metrics not written", "error", werr)
			}
			return err
		},
	}

	cmd.Flags().String("model", "", "Exported ONNX model")
	cmd.Flags().Float32("conf", 0, "Minimum detection confidence")
	cmd.Flags().String("device", "", "Execution provider: cpu, cuda:N, coreml, openvino")
	cmd.Flags().String("output", "", "Root directory for annotated videos")
	cmd.Flags().Int("progress-every", 0, "Log progress every N frames")
	cmd.Flags().String("metrics-file", "", "Write detector metrics here in Prometheus text format")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"model":          "inference.model",
		"conf":           "inference.confidence",
		"device":         "inference.device",
		"output":         "video.output",
		"progress-every": "video.progress_every",
		"metrics-file":   "inference.metrics_file",
	}))

	return cmd
}
