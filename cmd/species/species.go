// Package species implements the species search command.
package species

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/taxonomy"
)

// Command creates the species command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species TERM...",
		Short: "Search the taxonomy registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := taxonomy.NewClient(taxonomy.ConfigFromSettings(settings.Taxonomy, nil))
			if err != nil {
				return err
			}
			term := strings.Join(args, " ")
			taxa, err := client.Find(cmd.Context(), term)
			if err != nil {
				return err
			}
			if len(taxa) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No species found for %q\n", term)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCIENTIFIC NAME\tNAME\tGROUP")
			for _, t := range taxa {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.ScientificName, t.VernacularName, t.TaxonGroup)
			}
			return tw.Flush()
		},
	}
	return cmd
}
