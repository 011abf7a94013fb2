// Package locations implements the saved-location commands.
package locations

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/model"
)

// Command creates the locations command group.
func Command(settings *conf.Settings) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage saved locations",
	}
	cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Owner user id (default: anonymous)")

	cmd.AddCommand(listCommand(settings, &user), addCommand(settings, &user))
	return cmd
}

func listCommand(settings *conf.Settings, user *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := datastore.New(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			locs, err := stores.Locations.FetchLocations(cmd.Context(), model.Owner(*user))
			if err != nil {
				return err
			}
			if len(locs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved locations")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLAT\tLNG\tRADIUS (m)")
			for _, l := range locs {
				fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%g\n", l.ID, l.Name, l.Point.Lat, l.Point.Lng, l.UncertaintyRadius)
			}
			return tw.Flush()
		},
	}
}

func addCommand(settings *conf.Settings, user *string) *cobra.Command {
	var in model.LocationInput

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Save a named location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = strings.Join(args, " ")

			stores, err := datastore.New(cmd.Context(), settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			loc, err := stores.Locations.CreateLocation(cmd.Context(), in, model.Owner(*user))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", loc.Name, loc.ID)
			return nil
		},
	}

	cmd.Flags().Float64Var(&in.Point.Lat, "lat", 0, "Latitude in degrees")
	cmd.Flags().Float64Var(&in.Point.Lng, "lng", 0, "Longitude in degrees")
	cmd.Flags().Float64VarP(&in.UncertaintyRadius, "radius", "r", 10, "Uncertainty radius in meters")
	cmd.Flags().StringVar(&in.Description, "description", "", "Optional description")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
	return cmd
}
