package health

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// Command creates a new cobra.Command to check the backend.
func Command(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var h *api.Health
			err := a.Track("health", func() error {
				var err error
				h, err = spinner.Wrap(a.Spinner(), "Checking backend", func() (*api.Health, error) {
					return a.Client.Health(cmd.Context())
				})
				return err
			})
			if err != nil {
				return a.Fail(err, "")
			}
			a.Out.Health(h)
			return nil
		},
	}
}
