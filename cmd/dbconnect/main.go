// dbconnect manages named, encrypted database connection definitions
// and runs queries against them from the command line.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dbconnect"
	"dbconnect/internal/manager"
	"dbconnect/internal/registry"
)

var (
	log zerolog.Logger
	mgr *manager.Manager

	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dbconnect",
	Short: "Manage encrypted database connections and run queries against them",
	Long: `dbconnect stores database connection definitions (oracle, postgresql,
mysql, mssql, sqlite) with every field encrypted at rest, and executes
parameterized SQL against any stored connection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := dbconnect.LoadConfig()
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		log = dbconnect.NewLogger(cfg.LogLevel)

		store, err := registry.Open(cfg.AppName, cfg.ConfigDir, log)
		if err != nil {
			return err
		}
		mgr = manager.New(store, log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if mgr != nil {
			mgr.CloseAll()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"log level (trace, debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
