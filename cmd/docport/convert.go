package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/utils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <definition.json>",
	Short: "Render a saved outline definition",
	Long: "Convert an outline definition file, as returned by the Mubu document API, into " +
		strings.Join(outline.Formats(), ", "),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		title, _ := cmd.Flags().GetString("title")
		imageHost, _ := cmd.Flags().GetString("image-host")

		fs := afero.NewOsFs()
		raw, err := afero.ReadFile(fs, args[0])
		if err != nil {
			return err
		}
		doc, err := outline.ParseDefinition(raw)
		if err != nil {
			return fmt.Errorf("invalid definition: %w", err)
		}

		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if title == "" {
			title = doc.Title
		}
		if title == "" {
			title = base
		}
		rendered, err := outline.Render(doc, format, outline.Options{
			Title:      title,
			ExportedAt: time.Now(),
			ImageHost:  imageHost,
		})
		if err != nil {
			return err
		}

		if output == "" {
			output = filepath.Join(filepath.Dir(args[0]), utils.SanitizeSegment(title)+"."+rendered.Extension)
		}
		if err := afero.WriteFile(fs, output, rendered.Content, 0o644); err != nil {
			return err
		}
		fmt.Printf("📄 Wrote %s\n", output)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringP("format", "f", "md", "output format: "+strings.Join(outline.Formats(), ", "))
	convertCmd.Flags().StringP("output", "o", "", "output file (default next to the definition)")
	convertCmd.Flags().String("title", "", "document title (default from the definition or file name)")
	convertCmd.Flags().String("image-host", "", "host prefix for relative image paths")
}
