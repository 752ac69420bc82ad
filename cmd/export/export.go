package export

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/trainer"
)

// Command creates the export command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export trained weights to ONNX with NMS embedded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := ctx.Settings
			driver := trainer.NewDriver(trainer.ExecRunner{}, s.Train.Executable, s.Train.ExecutableArgs...)
			out, err := driver.Export(cmd.Context(), s.Export.Weights, s.Export.ExportConfig)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", out)
			return err
		},
	}

	cmd.Flags().String("weights", "", "Trained checkpoint")
	cmd.Flags().String("format", "", "Export format")
	cmd.Flags().Int("imgsz", 0, "Input image size")
	cmd.Flags().Int("opset", 0, "ONNX opset, 0 for the exporter default")
	cmd.Flags().Bool("half", false, "Export FP16 weights")
	cmd.Flags().String("device", "", "Device used for tracing")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"weights": "export.weights",
		"format":  "export.format",
		"imgsz":   "export.image_size",
		"opset":   "export.opset",
		"half":    "export.half",
		"device":  "export.device",
	}))

	return cmd
}
