package cmd

import (
	"fmt"
	"os"

	"github.com/kerbaras/docport/pkg/app/components"
	"github.com/kerbaras/docport/pkg/app/styles"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted export job",
	Long:  "Display every document of the manifest with its export status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		logLines, _ := cmd.Flags().GetInt("logs")

		rt, err := setup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		state := rt.orch.State()
		if len(state.FileList) == 0 {
			fmt.Println("📭 No manifest yet. Run 'docport discover' first.")
			return nil
		}

		list := components.NewDocList(state.FileList)
		switch f := components.DocFilter(filter); f {
		case components.FilterAll, components.FilterFailed, components.FilterPending, components.FilterDone:
			list.Filter = f
		default:
			return fmt.Errorf("unknown filter %q", filter)
		}
		if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			list.Width = w
			list.Height = h - 6
		}

		fmt.Println(styles.TitleStyle.Render(fmt.Sprintf("%s export", rt.source.Name())))
		fmt.Println(components.Summary(state))
		fmt.Println()
		fmt.Println(list.View())

		if logLines > 0 && len(state.Logs) > 0 {
			logs := state.Logs
			if len(logs) > logLines {
				logs = logs[len(logs)-logLines:]
			}
			fmt.Println(styles.SubtitleStyle.Render("Recent log"))
			for _, line := range logs {
				fmt.Println(styles.MutedStyle.Render(line))
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("filter", "all", "documents to list: all, failed, pending or done")
	statusCmd.Flags().Int("logs", 10, "number of recent log lines to show")
}
