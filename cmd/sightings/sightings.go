package sightings

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/render"
	"github.com/tphakala/birdtarifa/internal/sightings"
	"github.com/tphakala/birdtarifa/pkg/spinner"
)

// Command creates the sightings command group.
func Command(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sightings",
		Aliases: []string{"sighting"},
		Short:   "List and record bird sightings",
	}
	cmd.AddCommand(listCommand(a), createCommand(a))
	return cmd
}

func listCommand(a *app.App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent sightings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				limit = a.Settings.Sightings.Limit
			}
			history := sightings.NewHistory(a.Client, limit, a.Log())
			err := refresh(cmd.Context(), a, history)
			a.Out.Sightings(history.Sightings(), history.Err())
			if err != nil {
				return &app.ReportedError{Err: err}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of sightings (default from config)")
	return cmd
}

func createCommand(a *app.App) *cobra.Command {
	var (
		zone       string
		species    string
		notes      string
		observedAt string
		photo      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a new sighting",
		Long: `Record a sighting, optionally with a JPEG, PNG or WebP photo.

The zone is remembered for the next sighting. The observation time accepts
RFC3339, "2006-01-02T15:04" or "2006-01-02 15:04" in the configured timezone;
other formats are left out of the record and reported as a warning.`,
		Example: `  birdtarifa sightings create --species "Milano negro" --notes "Flock of 40"
  birdtarifa sightings create --zone "Punta Paloma" --photo ./kite.jpg --observed-at "2026-04-12 08:30"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := ".", ""
			if photo != "" {
				abs, err := filepath.Abs(photo)
				if err != nil {
					return a.Fail(err, "")
				}
				dir, name = filepath.Dir(abs), filepath.Base(abs)
			}

			log := a.Log().Module("cli")
			composer := sightings.NewComposer(
				a.Client,
				sightings.NewSelection(os.DirFS(dir)),
				a.Prefs,
				sightings.ComposerConfig{
					DefaultZone: a.Settings.Sightings.DefaultZone,
					Location:    a.Settings.Location(),
					OnStateChange: func(s sightings.State) {
						log.Debug("composer state", logger.String("state", s.String()))
					},
				},
				a.Log(),
				a.Publishers()...,
			)
			defer composer.Close()

			if cmd.Flags().Changed("zone") {
				composer.SetZone(zone)
			}
			composer.SetSpeciesGuess(species)
			composer.SetNotes(notes)
			composer.SetObservedAt(observedAt)
			if name != "" {
				if _, err := composer.SelectPhoto(name); err != nil {
					return a.Fail(err, "")
				}
			}

			var result *sightings.Result
			err := a.Track("create_sighting", func() error {
				var err error
				result, err = spinner.Wrap(a.Spinner(), "Saving sighting", func() (*sightings.Result, error) {
					return composer.Submit(cmd.Context())
				})
				return err
			})
			if err != nil {
				if msg := composer.CleanupErr(); msg != "" {
					a.Out.Banner(render.BannerWarning, "Uploaded photo could not be removed: "+msg)
				}
				return a.Fail(err, composer.Err())
			}

			a.Out.Banner(render.BannerSuccess, result.Message)
			for _, w := range result.Warnings {
				a.Out.Banner(render.BannerWarning, w)
			}

			history := sightings.NewHistory(a.Client, a.Settings.Sightings.Limit, a.Log())
			if err := refresh(cmd.Context(), a, history); err != nil {
				history.Prepend(*result.Sighting)
			}
			a.Out.Sightings(history.Sightings(), "")
			return nil
		},
	}

	cmd.Flags().StringVarP(&zone, "zone", "z", "", "Zone name (default: last used zone)")
	cmd.Flags().StringVarP(&species, "species", "s", "", "Species guess")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&observedAt, "observed-at", "", "Observation time (default: now, set by the backend)")
	cmd.Flags().StringVarP(&photo, "photo", "p", "", "Path to a JPEG, PNG or WebP photo")
	return cmd
}

func refresh(ctx context.Context, a *app.App, history *sightings.History) error {
	return a.Track("list_sightings", func() error {
		_, err := spinner.Wrap(a.Spinner(), "Loading sightings", func() (struct{}, error) {
			return struct{}{}, history.Refresh(ctx)
		})
		return err
	})
}
