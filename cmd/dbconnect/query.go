package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	flagParams []string
	flagOutput string
)

var queryCmd = &cobra.Command{
	Use:   "query <name> <sql>",
	Short: "Run a query and print its rows",
	Long: `Run a SELECT-shaped statement against a stored connection. Named
parameters use :name placeholders regardless of backend.

Example:
  dbconnect query prod "SELECT id, email FROM users WHERE active = :active" \
    --param active=true --output json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseFieldFlags(flagParams)
		if err != nil {
			return err
		}
		rows, err := mgr.ExecuteQuery(cmd.Context(), args[0], args[1], params)
		if err != nil {
			return err
		}
		return renderRows(rows, flagOutput)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <name> <sql>",
	Short: "Run a mutating statement and print the affected row count",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseFieldFlags(flagParams)
		if err != nil {
			return err
		}
		affected, err := mgr.ExecuteCommand(cmd.Context(), args[0], args[1], params)
		if err != nil {
			return err
		}
		fmt.Printf("%d row(s) affected.\n", affected)
		return nil
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables <name>",
	Short: "List user tables on a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tables, err := mgr.Tables(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:   "columns <name> <table>",
	Short: "Describe the columns of a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cols, err := mgr.Columns(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return renderRows(cols, flagOutput)
	},
}

// renderRows prints result rows as an aligned table (default), JSON or
// CSV. Column order is alphabetical since row maps are unordered.
func renderRows(rows []map[string]any, format string) error {
	switch format {
	case "", "table":
		return renderTable(rows)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "csv":
		return renderCSV(rows)
	}
	return fmt.Errorf("unknown output format %q (expected table, json or csv)", format)
}

func columnOrder(rows []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func renderTable(rows []map[string]any) error {
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}
	cols := columnOrder(rows)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		for i, col := range cols {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, formatCell(row[col]))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func renderCSV(rows []map[string]any) error {
	cols := columnOrder(rows)
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = formatCell(row[col])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func init() {
	for _, cmd := range []*cobra.Command{queryCmd, execCmd} {
		cmd.Flags().StringArrayVar(&flagParams, "param", nil,
			"statement parameter as key=value (repeatable)")
	}
	queryCmd.Flags().StringVarP(&flagOutput, "output", "o", "table",
		"output format: table, json or csv")
	columnsCmd.Flags().StringVarP(&flagOutput, "output", "o", "table",
		"output format: table, json or csv")
	rootCmd.AddCommand(queryCmd, execCmd, tablesCmd, columnsCmd)
}
