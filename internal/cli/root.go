// Package cli implements the beacon command line.
package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/beacon/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Outbound webhook notifications with durable delivery",
	Long: `Beacon notifies external systems about platform events through signed
outbound webhooks and processes delivery outcome callbacks.

Start the daemon:
  beacon serve

Prepare the database:
  beacon migrate`,
	Version:      "0.1.0-dev",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./beacon.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(triggersCmd)
	rootCmd.AddCommand(secretCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: cfgFile})
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
