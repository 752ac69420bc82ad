// Package satellites lists the satellites above an observer and ranks them by straight-line
// distance.
package satellites

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/nvr-ai/debris/common"
)

// EarthRadiusKm is the mean Earth radius used for the ECEF conversion.
const EarthRadiusKm = 6371.0

// Observer is a position on or above the Earth.
type Observer struct {
	Latitude  float64
	Longitude float64
	// Altitude is in metres above sea level.
	Altitude float64
}

// Validate checks the coordinate ranges.
func (o Observer) Validate() error {
	switch {
	case math.IsNaN(o.Latitude) || o.Latitude < -90 || o.Latitude > 90:
		return &common.ConfigError{Field: "satellites.latitude", Err: errors.Errorf("must be in [-90, 90], got %v", o.Latitude)}
	case math.IsNaN(o.Longitude) || o.Longitude < -180 || o.Longitude > 180:
		return &common.ConfigError{Field: "satellites.longitude", Err: errors.Errorf("must be in [-180, 180], got %v", o.Longitude)}
	}
	return nil
}

// Satellite is a satellite position as reported by the tracking service.
type Satellite struct {
	ID        int64
	Name      string
	Latitude  float64
	Longitude float64
	// Altitude is in kilometres.
	Altitude float64
}

// Ranked is a satellite with its distance from the observer.
type Ranked struct {
	Satellite
	// Distance is in kilometres.
	Distance float64
}

type ecef struct{ x, y, z float64 }

func toECEF(latDeg, lonDeg, altKm float64) ecef {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	r := EarthRadiusKm + altKm
	return ecef{
		x: r * math.Cos(lat) * math.Cos(lon),
		y: r * math.Cos(lat) * math.Sin(lon),
		z: r * math.Sin(lat),
	}
}

// Distance is the straight-line distance in kilometres between the observer and a
// satellite, both placed on a spherical Earth.
func Distance(obs Observer, sat Satellite) float64 {
	o := toECEF(obs.Latitude, obs.Longitude, obs.Altitude/1000)
	s := toECEF(sat.Latitude, sat.Longitude, sat.Altitude)
	return math.Sqrt((o.x-s.x)*(o.x-s.x) + (o.y-s.y)*(o.y-s.y) + (o.z-s.z)*(o.z-s.z))
}

// Rank computes every distance and sorts nearest first. Equal distances keep input order.
func Rank(obs Observer, sats []Satellite) []Ranked {
	out := make([]Ranked, len(sats))
	for i, s := range sats {
		out[i] = Ranked{Satellite: s, Distance: Distance(obs, s)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// WriteTable prints the ranked satellites as aligned columns followed by a total line.
func WriteTable(w io.Writer, ranked []Ranked) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, "No satellites found above your position.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Satellite\tNORAD ID\tAlt (km)\tDistance (km)\t")
	for _, r := range ranked {
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t\n", r.Name, r.ID, r.Altitude, r.Distance)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal satellites found: %d\n", len(ranked))
	return err
}
