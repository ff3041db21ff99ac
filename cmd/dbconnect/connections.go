package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dbconnect/internal/models"
)

var (
	flagDBType string
	flagFields []string
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Store a new connection definition",
	Long: `Store a new named connection. The definition is validated for its
backend before anything is written; every field is encrypted at rest.

Example:
  dbconnect add prod --type postgresql \
    --field host=db.internal --field username=app \
    --field password=secret --field database=appdb --field sslmode=require`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := definitionFromFlags()
		if err != nil {
			return err
		}
		if err := mgr.Add(args[0], def); err != nil {
			return err
		}
		fmt.Printf("Connection %q added.\n", args[0])
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Replace a stored connection definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := definitionFromFlags()
		if err != nil {
			return err
		}
		if err := mgr.Update(args[0], def); err != nil {
			return err
		}
		fmt.Printf("Connection %q updated.\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored connection definition",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Connection %q removed.\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored connection names",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := mgr.ListConnections()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No connections stored.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a connection's non-sensitive details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := mgr.ConnectionInfo(args[0])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", info.Name)
		fmt.Fprintf(w, "Type:\t%s\n", info.Type)
		if info.Host != "" {
			fmt.Fprintf(w, "Host:\t%s\n", info.Host)
		}
		if info.Port != 0 {
			fmt.Fprintf(w, "Port:\t%d\n", info.Port)
		}
		if info.Database != "" {
			fmt.Fprintf(w, "Database:\t%s\n", info.Database)
		}
		fmt.Fprintf(w, "Connected:\t%t\n", info.Connected)
		if info.Connected {
			fmt.Fprintf(w, "Use count:\t%d\n", info.UseCount)
		}
		return w.Flush()
	},
}

var testCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test whether a stored connection is reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if mgr.Test(cmd.Context(), args[0]) {
			fmt.Printf("Connection %q OK.\n", args[0])
			return nil
		}
		return fmt.Errorf("connection %q is not reachable", args[0])
	},
}

func definitionFromFlags() (models.Definition, error) {
	fields, err := parseFieldFlags(flagFields)
	if err != nil {
		return models.Definition{}, err
	}
	return models.Definition{Type: models.DBType(flagDBType), Fields: fields}, nil
}

func init() {
	for _, cmd := range []*cobra.Command{addCmd, updateCmd} {
		cmd.Flags().StringVar(&flagDBType, "type", "",
			"database type (oracle, postgresql, mysql, mssql, sqlite)")
		cmd.Flags().StringArrayVar(&flagFields, "field", nil,
			"connection field as key=value (repeatable)")
		cmd.MarkFlagRequired("type")
	}
	rootCmd.AddCommand(addCmd, updateCmd, removeCmd, listCmd, showCmd, testCmd)
}
