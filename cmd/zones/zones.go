package zones

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/predictions"
	"github.com/tphakala/birdtarifa/internal/render"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// Command creates a new cobra.Command to list prediction zones.
func Command(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List the zones available for predictions",
		Long: `List the curated zones grouped as in the prediction form.
The zone marked with * is the one the next "predict" run will use.
When the zone list cannot be loaded the general Tarifa zone is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.Log()
			form := predictions.NewForm(a.Client, predictions.NewSearch(a.Client, log), a.Prefs,
				predictions.FormConfig{Limit: a.Settings.Predictions.Limit}, log)

			_ = a.Track("list_zones", func() error {
				_, err := spinner.Wrap(a.Spinner(), "Loading zones", func() (struct{}, error) {
					return struct{}{}, form.LoadZones(cmd.Context())
				})
				return err
			})

			a.Out.Banner(render.BannerWarning, form.ZonesErr())
			a.Out.Zones(form.Groups(), form.Selection())
			return nil
		},
	}
}
