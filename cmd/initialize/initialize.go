package initialize

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/dataset"
)

// Command creates the init command.
func Command(ctx *config.Context) *cobra.Command {
	var (
		train string
		val   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a dataset descriptor for the default classes",
		Long: `Write a data.yaml listing space_debris, statelites and asteroids. Without --val the
validation split is the training split.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.Settings.Dataset.Descriptor
			d := dataset.DefaultDescriptor(train, val)
			if err := dataset.WriteDescriptor(path, d, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (train: %s, val: %s, %d classes)\n",
				path, d.Train, d.Val, d.NC())
			return err
		},
	}

	cmd.Flags().StringVar(&train, "train", "train/images", "Training images directory")
	cmd.Flags().StringVar(&val, "val", "", "Validation images directory (default: the training directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing descriptor")
	cmd.Flags().String("out", "", "Descriptor to write (default: data.yaml)")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"out": "dataset.descriptor",
	}))

	return cmd
}
