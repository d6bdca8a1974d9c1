package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/loader"
	"github.com/schemakit/schemakit/render"
	"github.com/schemakit/schemakit/schema"
	"github.com/schemakit/schemakit/utils"
)

var (
	renderSchemaFile string
	renderDialect    string
	renderOutput     string
)

func init() {
	renderCmd.Flags().StringVarP(&renderSchemaFile, "schema", "s", "", "Schema file to render (default: schema.yaml or schema.yml)")
	renderCmd.Flags().StringVarP(&renderDialect, "dialect", "d", "postgres", "SQL dialect (postgres, sqlite)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the script to a file instead of stdout")
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a schema file as SQL DDL",
	Long: `Render a validated schema as a CREATE script for a target dialect.

The schema is finalized first, so a file with definition errors never renders.
PostgreSQL output creates one schema per namespace and adds foreign keys as
ALTER TABLE statements so definition order never matters. SQLite output
flattens namespaces into table name prefixes and inlines the foreign keys.

Examples:
  schemakit render                     # schema.yaml as PostgreSQL DDL on stdout
  schemakit render --dialect sqlite    # SQLite DDL
  schemakit render -o schema.sql       # Write the script to a file
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := renderSchema(); err != nil {
			fmt.Printf("❌ Render failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func renderSchema() error {
	dialect, err := render.ParseDialect(renderDialect)
	if err != nil {
		return err
	}

	file := renderSchemaFile
	if file == "" {
		if file = utils.FindSchemaFile(); file == "" {
			return fmt.Errorf("no schema file found (tried schema.yaml and schema.yml), use --schema")
		}
	}

	spec, err := loader.Load(file)
	if err != nil {
		return fmt.Errorf("failed to load schema: %v", err)
	}

	s, err := schema.Build(spec)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("schema has %d definition error(s), run 'schemakit validate' for the full report", len(verr.Errors))
		}
		return err
	}

	script, err := render.Script(s, dialect)
	if err != nil {
		return err
	}

	if renderOutput == "" {
		fmt.Print(script)
		return nil
	}
	if err := os.WriteFile(renderOutput, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %v", renderOutput, err)
	}
	fmt.Printf("✅ Rendered %s DDL to %s\n", dialect, renderOutput)
	return nil
}
