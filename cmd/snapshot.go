package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/schemakit/schemakit/loader"
	"github.com/schemakit/schemakit/schema"
	"github.com/schemakit/schemakit/snapshot"
	"github.com/schemakit/schemakit/utils"
)

var (
	snapshotRegistry   string
	snapshotSchemaFile string
	snapshotShowOutput string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save and recall schema versions",
	Long: `Keep validated schema versions in a local registry file.

Saving under an existing name adds a new version rather than overwriting.
Loading by name returns the newest version; older ones stay reachable by id.

Examples:
  schemakit snapshot save release-1          # Save schema.yaml under a name
  schemakit snapshot list                    # Show saved versions, newest first
  schemakit snapshot show release-1          # Print a saved schema as YAML
  schemakit snapshot show 5f0c... -o old.yaml
`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Validate the schema file and save it under a name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := saveSnapshot(args[0]); err != nil {
			fmt.Printf("❌ Snapshot save failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listSnapshots(); err != nil {
			fmt.Printf("❌ Snapshot list failed: %v\n", err)
			os.Exit(1)
		}
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <name|id>",
	Short: "Print a saved snapshot as YAML",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showSnapshot(args[0]); err != nil {
			fmt.Printf("❌ Snapshot show failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	snapshotCmd.PersistentFlags().StringVarP(&snapshotRegistry, "registry", "r", snapshot.DefaultPath, "Registry file to use")
	snapshotSaveCmd.Flags().StringVarP(&snapshotSchemaFile, "schema", "s", "", "Schema file to save (default: schema.yaml or schema.yml)")
	snapshotShowCmd.Flags().StringVarP(&snapshotShowOutput, "output", "o", "", "Write the schema to a file instead of stdout")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
}

func saveSnapshot(name string) error {
	file := snapshotSchemaFile
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
		return fmt.Errorf("schema is invalid: %v", err)
	}

	store, err := snapshot.Open(snapshotRegistry)
	if err != nil {
		return fmt.Errorf("failed to open registry: %v", err)
	}
	defer store.Close()

	entry, err := store.Save(context.Background(), name, s)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Saved %q (%d tables)\n", entry.Name, entry.Tables)
	fmt.Printf("   🆔 %s\n", entry.ID)
	return nil
}

func listSnapshots() error {
	store, err := snapshot.Open(snapshotRegistry)
	if err != nil {
		return fmt.Errorf("failed to open registry: %v", err)
	}
	defer store.Close()

	entries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("📋 No snapshots saved yet")
		return nil
	}

	blue := color.New(color.FgBlue, color.Bold)
	fmt.Printf("%-38s %-20s %-7s %s\n", "ID", "Name", "Tables", "Saved")
	fmt.Println(strings.Repeat("-", 84))
	for _, e := range entries {
		name := e.Name
		if len(name) > 18 {
			name = name[:15] + "..."
		}
		fmt.Printf("%-38s %-20s %-7d %s\n",
			e.ID,
			blue.Sprint(name),
			e.Tables,
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	fmt.Println(strings.Repeat("-", 84))
	fmt.Printf("📊 %d snapshots\n", len(entries))
	return nil
}

func showSnapshot(ref string) error {
	store, err := snapshot.Open(snapshotRegistry)
	if err != nil {
		return fmt.Errorf("failed to open registry: %v", err)
	}
	defer store.Close()

	spec, entry, err := store.Load(context.Background(), ref)
	if err != nil {
		return err
	}

	out, err := loader.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %v", err)
	}

	if snapshotShowOutput == "" {
		fmt.Print(string(out))
		return nil
	}
	if err := os.WriteFile(snapshotShowOutput, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %v", snapshotShowOutput, err)
	}
	fmt.Printf("✅ Wrote %q (saved %s) to %s\n", entry.Name, entry.CreatedAt.Local().Format("2006-01-02 15:04:05"), snapshotShowOutput)
	return nil
}
