package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kerbaras/docport/pkg/app/components"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Build the document manifest",
	Long:  "Walk every folder and team space of the account and store the list of exportable documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		asJSON, _ := cmd.Flags().GetBool("json")

		rt, err := setup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Fprintf(os.Stderr, "🔍 Scanning %s...\n", rt.source.Name())
		m, err := rt.orch.Discover(cmd.Context())
		if err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}

		state := rt.orch.State()
		switch {
		case asYAML:
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(state.Manifest())
		case asJSON:
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(state.Manifest())
		}

		fmt.Printf("📚 Found %d documents in %d folders\n", len(m.Files), m.FolderCount)
		if m.Truncated {
			fmt.Println("⚠️  Folder tree was truncated, some documents may be missing")
		}
		fmt.Println(components.Summary(state))
		return nil
	},
}

func init() {
	discoverCmd.Flags().Bool("yaml", false, "print the manifest as YAML")
	discoverCmd.Flags().Bool("json", false, "print the manifest as JSON")
	discoverCmd.MarkFlagsMutuallyExclusive("yaml", "json")
}
