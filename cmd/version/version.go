package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/app"
)

// Command creates a new cobra.Command to print build metadata.
func Command(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.Stdout(), a.Build.String())
			return err
		},
	}
}
