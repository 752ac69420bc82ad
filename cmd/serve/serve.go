package serve

import (
	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/landing"
)

// Command creates the serve command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the satellite proximity page and proxy its API calls",
		Long: `Serve the landing page and forward /api/<path> to the N2YO API so the page works
without cross-origin access. Upstream responses are cached and rate limited; Prometheus
metrics are on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := ctx.Settings.Landing
			srv, err := landing.NewServer(landing.Config{
				Addr:      l.Addr,
				Dir:       l.Dir,
				Upstream:  l.Upstream,
				CacheTTL:  l.CacheTTL,
				RateLimit: l.RateLimit,
				Burst:     l.Burst,
				Timeout:   l.Timeout,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "Listen address")
	cmd.Flags().String("dir", "", "Static directory (default: built-in page)")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"addr": "landing.addr",
		"dir":  "landing.dir",
	}))

	return cmd
}
