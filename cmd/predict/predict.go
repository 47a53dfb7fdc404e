package predict

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/predictions"
	"github.com/tphakala/birdtarifa/internal/render"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// Command creates a new cobra.Command to query likely birds for a zone.
func Command(a *app.App) *cobra.Command {
	var (
		zone   string
		custom string
		month  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Show which birds are likely in a zone",
		Long: `Query the prediction service for a zone and month.

The zone choice is remembered between runs. Without --zone or --custom the
previous choice is reused, starting with the general Tarifa zone.

Examples:
  birdtarifa predict
  birdtarifa predict --zone los-lances --month 4
  birdtarifa predict --custom "Bolonia dunes"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.Settings.Predictions.Limit
			}
			log := a.Log()
			search := predictions.NewSearch(a.Client, log)
			form := predictions.NewForm(a.Client, search, a.Prefs, predictions.FormConfig{Limit: limit}, log)

			_, _ = spinner.Wrap(a.Spinner(), "Loading zones", func() (struct{}, error) {
				return struct{}{}, form.LoadZones(cmd.Context())
			})
			a.Out.Banner(render.BannerWarning, form.ZonesErr())

			switch {
			case cmd.Flags().Changed("custom"):
				if err := form.SelectZone(predictions.CustomZoneValue); err != nil {
					return a.Fail(err, "")
				}
				form.SetCustomZone(custom)
			case cmd.Flags().Changed("zone"):
				if err := form.SelectZone(zone); err != nil {
					return a.Fail(err, "")
				}
			}
			if cmd.Flags().Changed("month") {
				form.SetMonth(month)
			}

			err := a.Track("predict", func() error {
				_, err := spinner.Wrap(a.Spinner(), "Asking the prediction service", func() ([]api.Prediction, error) {
					return form.Submit(cmd.Context())
				})
				return err
			})
			if msg := form.LocalErr(); msg != "" {
				return a.Fail(err, msg)
			}

			a.Out.Predictions(predictions.Rank(search.Results()), search.Err())
			if err != nil {
				return &app.ReportedError{Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&zone, "zone", "z", "", `Zone id from "birdtarifa zones", or "geo" for the general zone`)
	cmd.Flags().StringVar(&custom, "custom", "", "Free-typed zone name instead of a curated zone")
	cmd.Flags().StringVarP(&month, "month", "m", "", "Month 1-12 (default current month)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of results (default from config)")
	cmd.MarkFlagsMutuallyExclusive("zone", "custom")

	cmd.AddCommand(seedCommand(a))

	return cmd
}

// seedCommand loads the demo prediction rules.
func seedCommand(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo prediction rules into the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeder := predictions.NewSeeder(a.Client, a.Log())

			err := a.Track("seed_rules", func() error {
				_, err := spinner.Wrap(a.Spinner(), "Loading demo rules", func() (int, error) {
					return seeder.Seed(cmd.Context())
				})
				return err
			})
			if err != nil {
				return a.Fail(err, seeder.Err())
			}
			a.Out.Banner(render.BannerSuccess, seeder.Message())
			return nil
		},
	}
}
