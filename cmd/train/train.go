package train

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/dataset"
	"github.com/nvr-ai/debris/logging"
	"github.com/nvr-ai/debris/trainer"
)

// Command creates the train command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the detector",
		Long: `Validate the dataset descriptor and labels, then run the framework's training
routine once. Weights and per-epoch metrics are written under <project>/<name>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), ctx.Settings, cmd.OutOrStdout())
		},
	}

	setupFlags(cmd, ctx)

	return cmd
}

func setupFlags(cmd *cobra.Command, ctx *config.Context) {
	cmd.Flags().String("data", "", "Dataset descriptor (data.yaml)")
	cmd.Flags().String("weights", "", "Base weights, e.g. yolov8n.pt")
	cmd.Flags().Int("epochs", 0, "Number of epochs")
	cmd.Flags().Int("batch", 0, "Batch size, -1 for automatic")
	cmd.Flags().Int("imgsz", 0, "Training image size")
	cmd.Flags().String("device", "", "Device: cpu, mps, 0, 0,1, cuda:0")
	cmd.Flags().String("name", "", "Run name")
	cmd.Flags().String("project", "", "Directory that holds the runs")
	cmd.Flags().Bool("check-labels", true, "Validate every label file before training")

	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"data":         "dataset.descriptor",
		"weights":      "train.base_weights",
		"epochs":       "train.epochs",
		"batch":        "train.batch_size",
		"imgsz":        "train.image_size",
		"device":       "train.device",
		"name":         "train.run_name",
		"project":      "train.project",
		"check-labels": "train.check_labels",
	}))
}

// Run trains once with settings and prints where the artifacts went.
//
// Arguments:
//   - ctx: Cancelling it interrupts the framework.
//   - settings: The loaded settings.
//   - out: Receives the label report on failure and the completion summary.
//
// Returns:
//   - error: A *common.ConfigError, label errors, or a *common.DelegatedTrainingError.
func Run(ctx context.Context, settings *config.Settings, out io.Writer) error {
	log := logging.Module("train")

	ds, err := dataset.LoadDescriptor(settings.Dataset.Descriptor)
	if err != nil {
		return err
	}
	log.Info("dataset loaded", "descriptor", ds.Source, "classes", ds.Names, "train", ds.Train, "val", ds.Val)

	if settings.Train.CheckLabels {
		report, err := dataset.Validate(ctx, ds, settings.Dataset.Workers)
		if err != nil {
			return err
		}
		if err := report.Err(); err != nil {
			_ = report.WriteText(out)
			return err
		}
	}

	driver := trainer.NewDriver(trainer.ExecRunner{}, settings.Train.Executable, settings.Train.ExecutableArgs...)
	art, err := driver.Train(ctx, ds, settings.Train.RunConfig)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Training complete in %s\n", art.Duration.Round(time.Second))
	fmt.Fprintf(out, "  run:          %s\n", art.RunID)
	fmt.Fprintf(out, "  results:      %s\n", art.SaveDir)
	fmt.Fprintf(out, "  best weights: %s\n", art.BestWeights)
	fmt.Fprintf(out, "  last weights: %s\n", art.LastWeights)
	for _, p := range art.Missing() {
		log.Warn("expected artifact not found", "path", p)
	}

	summary, err := trainer.ReadResults(art.Results)
	if err != nil {
		log.Warn("no final metrics", "results", art.Results, "error", err)
		return nil
	}
	_, err = fmt.Fprintf(out, "  epoch %d: precision %.3f  recall %.3f  mAP50 %.3f  mAP50-95 %.3f\n",
		summary.Epoch, summary.Precision, summary.Recall, summary.MAP50, summary.MAP5095)
	return err
}
