package overview

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/predictions"
	"github.com/tphakala/birdtarifa/internal/render"
	"github.com/tphakala/birdtarifa/internal/sightings"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// overviewSightings is how many sightings the overview shows.
const overviewSightings = 5

// Command creates a new cobra.Command that shows backend status, zones and
// the latest sightings, fetched concurrently.
func Command(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show backend status, zones and the latest sightings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.Log().Module("overview")
			history := sightings.NewHistory(a.Client, overviewSightings, a.Log())

			var (
				health              *api.Health
				healthErr, zonesErr error
				zones               []api.Zone
			)

			// Each section degrades on its own; no fetch cancels the others.
			var g errgroup.Group
			g.Go(func() error {
				health, healthErr = a.Client.Health(cmd.Context())
				return nil
			})
			g.Go(func() error {
				zones, zonesErr = a.Client.ListZones(cmd.Context())
				return nil
			})
			g.Go(func() error {
				return history.Refresh(cmd.Context())
			})

			err := a.Track("overview", func() error {
				_, err := spinner.Wrap(a.Spinner(), "Loading overview", func() (struct{}, error) {
					return struct{}{}, g.Wait()
				})
				return err
			})
			if err != nil {
				log.Debug("sightings unavailable", logger.Error(err))
			}

			if healthErr != nil {
				a.Out.Banner(render.BannerError, "Backend unreachable: "+api.Message(healthErr))
			} else {
				a.Out.Health(health)
			}

			if zonesErr != nil {
				a.Out.Banner(render.BannerWarning, "Zones unavailable: "+api.Message(zonesErr))
				zones = []api.Zone{predictions.FallbackZone}
			}
			a.Out.Zones(predictions.GroupZones(zones), "")

			a.Out.Sightings(history.Sightings(), history.Err())

			if healthErr != nil {
				return &app.ReportedError{Err: healthErr}
			}
			return nil
		},
	}
}
