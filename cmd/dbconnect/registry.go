package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagBackupDest string
	flagMaxIdle    time.Duration
	flagCloseAll   bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show registry metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := mgr.RegistryInfo()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Registry:\t%s\n", info.Path)
		fmt.Fprintf(w, "Version:\t%s\n", info.Version)
		fmt.Fprintf(w, "App:\t%s\n", info.AppName)
		fmt.Fprintf(w, "Connections:\t%d\n", info.ConnectionCount)
		fmt.Fprintf(w, "Created:\t%s\n", info.Created)
		fmt.Fprintf(w, "Modified:\t%s\n", info.LastModified)
		return w.Flush()
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the registry file",
	Long: `Copy the encrypted registry file. Without --dest a timestamped copy
is placed beside the original. The encryption key file is not copied;
a restored backup needs the original key to be readable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := mgr.Backup(flagBackupDest)
		if err != nil {
			return err
		}
		fmt.Printf("Registry backed up to %s\n", dest)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Close pooled connections idle beyond a threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		count := mgr.CleanupIdle(flagMaxIdle)
		fmt.Printf("%d connection(s) closed.\n", count)
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close [name]",
	Short: "Close a pooled connection, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagCloseAll || len(args) == 0 {
			count := mgr.CloseAll()
			fmt.Printf("%d connection(s) closed.\n", count)
			return nil
		}
		if mgr.CloseConnection(args[0]) {
			fmt.Printf("Connection %q closed.\n", args[0])
		} else {
			fmt.Printf("Connection %q was not open.\n", args[0])
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&flagBackupDest, "dest", "", "backup destination path")
	cleanupCmd.Flags().DurationVar(&flagMaxIdle, "max-idle", 30*time.Minute,
		"close connections idle for at least this long")
	closeCmd.Flags().BoolVar(&flagCloseAll, "all", false, "close every pooled connection")
	rootCmd.AddCommand(infoCmd, backupCmd, cleanupCmd, closeCmd)
}
