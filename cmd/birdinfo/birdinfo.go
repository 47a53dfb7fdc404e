package birdinfo

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/predictions"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// Command creates a new cobra.Command to show the quick sheet for species.
func Command(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "birdinfo SPECIES...",
		Short: "Show the quick sheet for one or more species",
		Long: `Look up a short description and photo for each species name.
Repeated names are answered from a local cache.`,
		Example: `  birdtarifa birdinfo "Milano negro"
  birdtarifa birdinfo "Cigüeña blanca" "Buitre leonado"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			panel := predictions.NewInfoPanel(a.Client, a.Settings.BirdInfo.CacheTTL, a.Log())
			defer panel.Close()

			var failed error
			for _, species := range args {
				err := a.Track("bird_info", func() error {
					panel.Open(cmd.Context(), species)
					if _, err := spinner.Wrap(a.Spinner(), "Looking up "+species, func() (struct{}, error) {
						return struct{}{}, panel.Wait(cmd.Context())
					}); err != nil {
						return err
					}
					if state := panel.State(); state.Err != "" && !state.NotFound {
						return errors.NewStd(state.Err)
					}
					return nil
				})
				if cmd.Context().Err() != nil {
					return a.Fail(cmd.Context().Err(), "")
				}

				a.Out.BirdInfo(panel.State())
				if err != nil && failed == nil {
					failed = &app.ReportedError{Err: err}
				}
			}
			return failed
		},
	}
}
