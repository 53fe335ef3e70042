package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"membership-reconciliation-service/internal/parsers"

	"github.com/spf13/cobra"
)

// formatsCmd lists the built-in bank CSV formats
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported bank CSV formats",
	Long: `Formats lists the built-in bank CSV column layouts the import command
accepts through its --format flag. Unknown names fall back to 'standard'.`,
	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE COL\tNAME COL\tAMOUNT COL\tMEMO COL\tSKIP ROWS")

	for _, format := range parsers.ListBankFormats() {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
			format.Name, format.DateColumn, format.NameColumn,
			format.AmountColumn, format.MemoColumn, format.SkipRows)
	}

	return w.Flush()
}
