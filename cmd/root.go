package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schemakit",
	Short: "Model, validate, and inspect relational schemas",
	Long: `schemakit treats a relational schema as data: namespaces, tables, columns,
keys, and the relationships between tables, with the rules that keep them
consistent.

Examples:

  schemakit init
  schemakit validate
  schemakit render --dialect postgres -o schema.sql
  schemakit inspect --url postgres://localhost:5432/app
  schemakit snapshot save release-1
`,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(snapshotCmd)
}
