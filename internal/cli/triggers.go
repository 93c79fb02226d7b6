package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/beacon/trigger"
)

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List the webhook triggers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, t := range trigger.All() {
			fmt.Fprintf(w, "%s\t%s\n", t, t.Description())
		}
		return w.Flush()
	},
}
