package validate

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/dataset"
)

// Command creates the validate command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the dataset descriptor and every label file",
		Long: `Load the descriptor, pair every image with its label file and check each label
line. Prints per split and per class counts; exits non-zero on any violation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), ctx.Settings, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String("data", "", "Dataset descriptor (data.yaml)")
	cmd.Flags().Int("workers", 0, "Concurrent label file reads")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"data":    "dataset.descriptor",
		"workers": "dataset.workers",
	}))

	return cmd
}

// Run validates the configured dataset and prints the report.
func Run(ctx context.Context, settings *config.Settings, out io.Writer) error {
	ds, err := dataset.LoadDescriptor(settings.Dataset.Descriptor)
	if err != nil {
		return err
	}
	report, err := dataset.Validate(ctx, ds, settings.Dataset.Workers)
	if err != nil {
		return err
	}
	if err := report.WriteText(out); err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "OK")
	return err
}
