package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdtarifa/cmd/birdinfo"
	"github.com/tphakala/birdtarifa/cmd/health"
	"github.com/tphakala/birdtarifa/cmd/overview"
	"github.com/tphakala/birdtarifa/cmd/predict"
	"github.com/tphakala/birdtarifa/cmd/sightings"
	"github.com/tphakala/birdtarifa/cmd/version"
	"github.com/tphakala/birdtarifa/cmd/zones"
	"github.com/tphakala/birdtarifa/internal/app"
	"github.com/tphakala/birdtarifa/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(a *app.App) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "birdtarifa",
		Short:         "Bird Tarifa CLI",
		Long:          "Log bird sightings around Tarifa and ask which birds are likely in a zone.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml")

	// Add sub-commands to the root command.
	versionCmd := version.Command(a)
	subcommands := []*cobra.Command{
		health.Command(a),
		sightings.Command(a),
		zones.Command(a),
		predict.Command(a),
		birdinfo.Command(a),
		overview.Command(a),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		v, err := conf.New(configFile)
		if err != nil {
			return err
		}
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		return a.Init(v)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a.Finish()
	}

	setupFlags(rootCmd)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("api-url", "", fmt.Sprintf("Backend base URL (default %s)", conf.DefaultBaseURL))
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("prefs", "", "Preference store: memory, file or sqlite")
	rootCmd.PersistentFlags().Bool("metrics", false, "Print per-route request totals after the command")
}

// bindFlags lets explicitly set flags take precedence over file and environment values
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	bindings := map[string]string{
		"api-url": "api.baseurl",
		"debug":   "debug",
		"prefs":   "prefs.backend",
		"metrics": "metrics.summary",
	}
	for flag, key := range bindings {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
