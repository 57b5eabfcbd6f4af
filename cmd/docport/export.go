package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kerbaras/docport/pkg/app"
	"github.com/kerbaras/docport/pkg/app/components"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errNothingToDo lets a start function end the command without an error.
var errNothingToDo = errors.New("nothing to do")

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every document of the manifest",
	Long: "Run the export job in the foreground. An interrupted job resumes where it stopped; " +
		"a finished one exports only documents that did not succeed.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		subfolder, _ := cmd.Flags().GetString("subfolder")
		typeFlags, _ := cmd.Flags().GetStringToString("type-format")
		refresh, _ := cmd.Flags().GetBool("refresh")
		plain, _ := cmd.Flags().GetBool("plain")

		return runForeground(cmd, plain, func(rt *runtime) error {
			ctx := cmd.Context()
			state := rt.orch.State()

			if state.IsExporting {
				fmt.Fprintf(os.Stderr, "⏯️  Resuming the interrupted export (%d/%d)\n", state.CurrentFileIndex+1, len(state.FileList))
				rt.orch.Resume(ctx)
				return nil
			}

			if refresh || len(state.FileList) == 0 {
				fmt.Fprintf(os.Stderr, "🔍 Scanning %s...\n", rt.source.Name())
				m, err := rt.orch.Discover(ctx)
				if err != nil {
					return fmt.Errorf("discovery failed: %w", err)
				}
				fmt.Fprintf(os.Stderr, "📚 Found %d documents in %d folders\n", len(m.Files), m.FolderCount)
			}

			if format == "" {
				format = rt.cfg.Export.Format
			}
			if !cmd.Flags().Changed("subfolder") {
				subfolder = rt.cfg.Export.Subfolder
			}
			typeFormats := map[string]string{}
			for k, v := range rt.cfg.Export.TypeFormats {
				typeFormats[k] = v
			}
			for k, v := range typeFlags {
				typeFormats[k] = v
			}
			return rt.orch.StartJob(ctx, format, subfolder, typeFormats)
		})
	},
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "export format for every document, or auto (default from config)")
	exportCmd.Flags().StringP("subfolder", "s", "", "subfolder of the output directory to write to")
	exportCmd.Flags().StringToString("type-format", nil, "per type format, e.g. --type-format newdoc=md,mosheet=xlsx")
	exportCmd.Flags().Bool("refresh", false, "run discovery again before exporting")
	exportCmd.Flags().Bool("plain", false, "print line-based progress instead of the interactive view")
}

// runForeground wires the stack, calls start and follows the job until it
// completes or the command is interrupted.
func runForeground(cmd *cobra.Command, plain bool, start func(*runtime) error) error {
	ctx := cmd.Context()
	interactive := !plain && term.IsTerminal(int(os.Stdout.Fd()))

	var logOut io.Writer = os.Stderr
	if interactive {
		f, err := openLogFile(defaultLogFile())
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}

	rt, err := setup(ctx, logOut)
	if err != nil {
		return err
	}
	defer rt.Close()

	begin := func(context.Context) error { return start(rt) }

	var counts *data.Counts
	if interactive {
		res, err := app.NewApp(rt.orch, rt.bus).Run(ctx, begin)
		if errors.Is(err, errNothingToDo) {
			return nil
		}
		if err != nil {
			return err
		}
		if res.Cancelled {
			fmt.Println("🛑 Export cancelled. Run 'docport export' to start again.")
			return nil
		}
		if !res.Tracker.Done {
			fmt.Println("⏸️  Export interrupted. Run 'docport export' to resume.")
			return nil
		}
		counts = res.Tracker.Counts
	} else {
		counts, err = followPlain(ctx, rt, begin)
		if errors.Is(err, errNothingToDo) {
			return nil
		}
		if err != nil {
			return err
		}
		if counts == nil {
			fmt.Println("⏸️  Export interrupted. Run 'docport export' to resume.")
			return nil
		}
	}

	printResult(rt, counts)
	return nil
}

// followPlain prints log lines and a progress line per document. It returns
// nil counts when ctx ends before the job completes.
func followPlain(ctx context.Context, rt *runtime, start func(context.Context) error) (*data.Counts, error) {
	sub, unsubscribe := rt.bus.Subscribe(256)
	defer unsubscribe()

	if err := start(ctx); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case e, ok := <-sub:
			if !ok {
				return nil, nil
			}
			switch e.Type {
			case events.TypeLog:
				fmt.Println(e.Line)
			case events.TypeProgress:
				fmt.Println(components.PlainLine(e.Exported, e.Total, 30))
			case events.TypeError:
				fmt.Fprintln(os.Stderr, "❌ "+e.Message)
				if !rt.orch.State().IsExporting {
					return nil, errors.New(e.Message)
				}
			case events.TypeComplete:
				return e.Counts, nil
			}
		}
	}
}

func printResult(rt *runtime, c *data.Counts) {
	if c == nil {
		return
	}
	fmt.Printf("✅ Export finished: %d saved, %d failed, %d skipped\n", c.Success-c.Skipped, c.Failed, c.Skipped)
	fmt.Printf("📁 Files are in %s\n", rt.sink.Root())

	if c.Failed == 0 {
		return
	}
	var failed []string
	for _, d := range rt.orch.State().FileList {
		if d.Status == data.StatusFailed {
			failed = append(failed, fmt.Sprintf("  - %s: %s", components.DocumentPath(d), d.Error))
		}
	}
	fmt.Println(strings.Join(failed, "\n"))
	fmt.Println("Run 'docport retry' to export the failed documents again.")
}
