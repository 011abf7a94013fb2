// Package export implements the export command.
package export

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/internal/app"
	"github.com/tphakala/fieldlog/internal/conf"
	fieldexport "github.com/tphakala/fieldlog/internal/export"
	"github.com/tphakala/fieldlog/internal/model"
)

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		out  string
		user string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export observations to a spreadsheet",
		Long: "Write every observation of the user to an xlsx file. In remote mode the file is " +
			"also archived to object storage and the observations are stamped as exported.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.Open(cmd.Context(), settings, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			owner := model.Owner(user)
			observations, err := a.Stores.Observations.FetchObservations(cmd.Context(), owner)
			if err != nil {
				return err
			}

			var sink fieldexport.Sink = fieldexport.DirSink{Dir: settings.Export.Dir}
			target := settings.Export.Dir
			if out != "" {
				sink = fieldexport.FileSink{Path: out}
				target = out
			}

			res, err := a.Exporter.Export(cmd.Context(), owner, observations, sink)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Exported %d rows from %d observations to %s (%s)\n",
				res.Rows, len(res.ObservationIDs), target, res.FileName)
			fmt.Fprintf(w, "Remote: %s\n", res.RemoteStatus())
			if res.RemoteErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", res.RemoteErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: export.dir with a generated name)")
	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner user id (default: anonymous)")
	return cmd
}
