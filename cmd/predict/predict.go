package predict

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/images"
	"github.com/nvr-ai/debris/inference"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/profiler"
)

// Command creates the predict command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [dir...]",
		Short: "Detect objects in image directories and save annotated copies",
		Long: `Run the exported model over every image directly inside each directory (default:
train and valid) and write <output>/<parent>_<name> with the detections drawn. A failing
image is counted and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := ctx.Settings
			inputs := s.Predict.Inputs
			if len(args) > 0 {
				inputs = args
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

			batch := &images.Batch{
				Inputs:    inputs,
				Output:    s.Predict.Output,
				Predictor: detector,
				Profiler:  profiler.New(),
			}
			res, err := batch.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d images\nSuccessfully saved: %d images\nErrors: %d\nResults saved to: %s\n",
				res.Found, res.Saved, res.Errors, s.Predict.Output)
			if werr := writeMetrics(); werr != nil {
				logging.Module("predict").Warn("metrics not written", "error", werr)
			}
			return err
		},
	}

	cmd.Flags().String("model", "", "Exported ONNX model")
	cmd.Flags().Float32("conf", 0, "Minimum detection confidence")
	cmd.Flags().String("device", "", "Execution provider: cpu, cuda:N, coreml, openvino")
	cmd.Flags().String("output", "", "Directory for annotated images")
	cmd.Flags().String("metrics-file", "", "Write detector metrics here in Prometheus text format")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"model":        "inference.model",
		"conf":         "inference.confidence",
		"device":       "inference.device",
		"output":       "predict.output",
		"metrics-file": "inference.metrics_file",
	}))

	return cmd
}
