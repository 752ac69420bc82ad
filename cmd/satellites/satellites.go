package satellites

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/debris/config"
	"github.com/nvr-ai/debris/satellites"
)

// Command creates the satellites command.
func Command(ctx *config.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "satellites",
		Short: "List satellites above a position, nearest first",
		Long: `Query N2YO for the satellites of a category within a radius of the observer's
zenith and print their straight-line distances. The API key is read from N2YO_API_KEY.`,
		Example: "  debris satellites --lat 41.39 --lon 2.17 --alt 0 --radius 70 --category 18",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := ctx.Settings.Satellites
			obs := satellites.Observer{Latitude: s.Latitude, Longitude: s.Longitude, Altitude: s.Altitude}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Observer position: lat=%v, lon=%v, alt=%vm\n", obs.Latitude, obs.Longitude, obs.Altitude)
			fmt.Fprintf(out, "Search radius: %d°  |  Category: %d\n\n", s.Radius, s.Category)

			client := satellites.NewClient(s.Endpoint, s.APIKey, s.Timeout)
			sats, err := client.Above(cmd.Context(), obs, s.Radius, s.Category)
			if err != nil {
				return err
			}
			return satellites.WriteTable(out, satellites.Rank(obs, sats))
		},
	}

	cmd.Flags().Float64("lat", 0, "Observer latitude in degrees")
	cmd.Flags().Float64("lon", 0, "Observer longitude in degrees")
	cmd.Flags().Float64("alt", 0, "Observer altitude in metres above sea level")
	cmd.Flags().Int("radius", 0, "Search radius in degrees, 0 to 90")
	cmd.Flags().Int("category", 0, "N2YO category, 0 for all")
	cmd.Flags().String("api-key", "", "N2YO API key (prefer N2YO_API_KEY)")
	cobra.CheckErr(ctx.BindFlags(cmd.Flags(), map[string]string{
		"lat":      "satellites.latitude",
		"lon":      "satellites.longitude",
		"alt":      "satellites.altitude",
		"radius":   "satellites.radius",
		"category": "satellites.category",
		"api-key":  "satellites.api_key",
	}))

	return cmd
}
