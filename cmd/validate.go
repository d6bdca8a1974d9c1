package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/loader"
	"github.com/schemakit/schemakit/utils"
	"github.com/schemakit/schemakit/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a schema file",
	Long: `Validate a schema file against the model rules and advisory checks.

Findings come in three severities:
- Errors: definitions the model rejects (duplicate names, broken references,
  foreign keys against non-unique targets, relation pairing problems)
- Warnings: accepted but suspicious definitions (redundant unique constraints,
  tables without a primary key, identifiers that always need quoting)
- Info: advisory notes (foreign key columns without a covering index)

The command exits non-zero when any error-level finding exists.

Examples:
  schemakit validate                       # Validate schema.yaml
  schemakit validate --schema custom.yaml  # Validate a specific file
  schemakit validate --format json         # Machine-readable output
`,
	Run: func(cmd *cobra.Command, args []string) {
		result, err := validateSchema()
		if err != nil {
			fmt.Printf("❌ Schema validation failed: %v\n", err)
			os.Exit(1)
		}
		if !result.Valid {
			os.Exit(1)
		}
	},
}

var (
	validateSchemaFile string
	validateFormat     string
)

func init() {
	validateCmd.Flags().StringVarP(&validateSchemaFile, "schema", "s", "", "Schema file to validate (default: schema.yaml or schema.yml)")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
}

func validateSchema() (*validator.ValidationResult, error) {
	file := validateSchemaFile
	if file == "" {
		if file = utils.FindSchemaFile(); file == "" {
			return nil, fmt.Errorf("no schema file found (tried schema.yaml and schema.yml), use --schema")
		}
	}

	spec, err := loader.Load(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %v", err)
	}

	result := validator.Validate(spec)

	if validateFormat == "json" {
		if err := outputJSON(result); err != nil {
			return nil, err
		}
		return result, nil
	}
	outputText(result)
	return result, nil
}

func outputJSON(result *validator.ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *validator.ValidationResult) {
	if result.Valid {
		color.Green("✅ Schema validation passed!")
	} else {
		color.Red("❌ Schema validation failed!")
	}

	printFindings("🔴 Errors", result.Errors)
	printFindings("🟡 Warnings", result.Warnings)
	printFindings("🔵 Info", result.Info)

	fmt.Printf("\n📊 Summary:\n")
	fmt.Printf("  • Errors: %d\n", len(result.Errors))
	fmt.Printf("  • Warnings: %d\n", len(result.Warnings))
	fmt.Printf("  • Info: %d\n", len(result.Info))

	if result.Valid {
		fmt.Printf("\n🎉 Your schema is valid and ready to render!\n")
	} else {
		fmt.Printf("\n💡 Fix the errors above, then validate again.\n")
	}
}

func printFindings(header string, findings []validator.ValidationError) {
	if len(findings) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", header, len(findings))
	for i, f := range findings {
		fmt.Printf("  %d. ", i+1)
		if f.Table != "" {
			if f.Namespace != "" {
				fmt.Printf("[%s.%s]", f.Namespace, f.Table)
			} else {
				fmt.Printf("[%s]", f.Table)
			}
		}
		if f.Column != "" {
			fmt.Printf(".%s", f.Column)
		}
		if f.Constraint != "" {
			fmt.Printf(" (constraint: %s)", f.Constraint)
		}
		fmt.Printf(": %s\n", f.Message)
	}
}
