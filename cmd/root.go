// Package cmd assembles the debris command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/cmd/export"
	"github.com/nvr-ai/debris/cmd/initialize"
	"github.com/nvr-ai/debris/cmd/predict"
	"github.com/nvr-ai/debris/cmd/satellites"
	"github.com/nvr-ai/debris/cmd/serve"
	"github.com/nvr-ai/debris/cmd/train"
	"github.com/nvr-ai/debris/cmd/validate"
	"github.com/nvr-ai/debris/cmd/video"
	"github.com/nvr-ai/debris/config"
)

// RootCommand creates and returns the root command. Without a subcommand it trains with the
// configured defaults.
func RootCommand(ctx *config.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "debris",
		Short:         "Space debris detector: dataset checks, training and detection tooling",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return train.Run(cmd.Context(), ctx.Settings, cmd.OutOrStdout())
		},
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, ctx)

	rootCmd.AddCommand(
		train.Command(ctx),
		validate.Command(ctx),
		initialize.Command(ctx),
		export.Command(ctx),
		predict.Command(ctx),
		video.Command(ctx),
		satellites.Command(ctx),
		serve.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Load(cmd.Flags())
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, ctx *config.Context) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.File, "config", "", "Configuration file (default: debris.yaml in . or ~/.config/debris)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Console log format: text or json")
	flags.String("log-file", "", "Also write JSON logs to this file, rotated")

	cobra.CheckErr(ctx.BindFlags(flags, map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
		"log-file":   "log.file",
	}))
}
