package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/kerbaras/docport/pkg/config"
	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/sources"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var previewCmd = &cobra.Command{
	Use:   "preview <doc-id>",
	Short: "Render an outline document in the terminal",
	Long:  "Fetch the outline of a document and show its Markdown rendering without saving anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := config.NewLogger(cfg.Log, os.Stderr)
		source, err := sources.Open(cfg, log)
		if err != nil {
			return err
		}
		fetcher, ok := source.(sources.OutlineFetcher)
		if !ok {
			return fmt.Errorf("%s documents cannot be previewed, only outline documents can", source.Name())
		}

		doc, err := fetcher.FetchOutline(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		md := outline.Markdown(doc.Nodes, outline.Options{
			Title:      doc.Title,
			ExportedAt: time.Now(),
			ImageHost:  cfg.Mubu.ImageHost,
		})
		if raw || !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Print(md)
			return nil
		}

		width := 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
			width = w - 4
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return err
		}
		out, err := r.Render(md)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	previewCmd.Flags().Bool("raw", false, "print the Markdown source instead of rendering it")
}
