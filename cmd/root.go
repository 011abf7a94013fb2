// Package cmd wires the fieldlog command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/cmd/config"
	"github.com/tphakala/fieldlog/cmd/export"
	"github.com/tphakala/fieldlog/cmd/locations"
	"github.com/tphakala/fieldlog/cmd/serve"
	"github.com/tphakala/fieldlog/cmd/species"
	"github.com/tphakala/fieldlog/internal/buildinfo"
	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/telemetry"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var (
		opts  conf.LoadOptions
		debug bool
	)

	rootCmd := &cobra.Command{
		Use:           "fieldlog",
		Short:         "Field log for bird observations",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/fieldlog, /etc/fieldlog)")
	rootCmd.PersistentFlags().StringVar(&opts.DotEnvFile, "env-file", "", "Path to a .env file (default: ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		serve.Command(settings),
		export.Command(settings),
		species.Command(settings),
		locations.Command(settings),
		config.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[config.SkipSettings] == "true" {
			return nil
		}
		loaded, err := conf.Load(opts)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, debug)
	}

	return rootCmd
}

// initialize sets up logging and error tracking once settings are known.
func initialize(settings *conf.Settings, debug bool) error {
	if debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	return telemetry.Init(settings.Telemetry)
}
