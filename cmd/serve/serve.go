// Package serve implements the serve command.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/internal/api"
	"github.com/tphakala/fieldlog/internal/app"
	"github.com/tphakala/fieldlog/internal/conf"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Open the configured stores and serve the JSON API until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				settings.Server.Listen = listen
			}

			a, err := app.Open(cmd.Context(), settings, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			e := api.NewEcho()
			api.New(e, Deps(a))
			return api.NewServer(e, settings.Server).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides server.listen")
	return cmd
}

// Deps maps an App onto the API dependencies.
func Deps(a *app.App) api.Deps {
	deps := api.Deps{
		Settings:    a.Settings,
		Stores:      a.Stores,
		Taxonomy:    a.Taxonomy,
		Exporter:    a.Exporter,
		Preferences: a.Preferences,
		Events:      a.Events,
		Metrics:     a.Metrics,
	}
	if a.Geocoder != nil {
		deps.Geocoder = a.Geocoder
	}
	return deps
}
