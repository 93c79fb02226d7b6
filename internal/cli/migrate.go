package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create the webhook, workspace, payout, commission and event log tables
of the configured store. Running it again is safe.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s store.\n", cfg.Store.Driver)
	return nil
}
