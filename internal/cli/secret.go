package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/beacon/signature"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a webhook signing secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), signature.GenerateSecret())
		return err
	},
}
