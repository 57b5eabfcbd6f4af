package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kerbaras/docport/pkg/config"
	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/events"
	"github.com/kerbaras/docport/pkg/services"
	"github.com/kerbaras/docport/pkg/sink"
	"github.com/kerbaras/docport/pkg/sources"
	"github.com/spf13/cobra"
)

var (
	configPath string
	platform   string
)

var rootCmd = &cobra.Command{
	Use:   "docport",
	Short: "Bulk export of cloud documents to local files",
	Long: "Walk a Shimo or Mubu account, export every document in the chosen format " +
		"and mirror the folder hierarchy on disk. Jobs survive restarts and resume where they stopped.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.docport/config.toml)")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "", "platform to export from (shimo or mubu)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(convertCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, sources.ErrNotAuthenticated) {
			fmt.Fprintln(os.Stderr, "🔑 Not signed in. Update the session credentials in your config or .env and retry.")
		}
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if platform != "" {
		cfg.Platform = strings.ToLower(platform)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// runtime holds everything a command needs to drive a job.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	store   data.JobStore
	source  sources.Source
	sink    *sink.FileSink
	bus     *events.Bus
	orch    *services.Orchestrator
	stop    context.CancelFunc
	closers []io.Closer
}

// setup wires the job stack. Log output goes to logOut; the interactive
// export passes a file so the progress view stays intact.
func setup(ctx context.Context, logOut io.Writer) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg}

	if logOut == nil {
		logOut = os.Stderr
	}
	if cfg.Log.File != "" {
		f, err := openLogFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, f)
		logOut = f
	}
	rt.log = config.NewLogger(cfg.Log, logOut)

	rt.store, err = data.OpenStore(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	rt.closers = append(rt.closers, rt.store)

	rt.source, err = sources.Open(cfg, rt.log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var opener sink.Opener
	if o, ok := rt.source.(sink.Opener); ok {
		opener = o
	}
	rt.sink = sink.NewOS(cfg.Export.OutputDir, opener)
	rt.bus = events.NewBus(rt.log)

	// Job loops outlive the command's ctx only until Close.
	base, stop := context.WithCancel(context.WithoutCancel(ctx))
	rt.stop = stop

	rt.orch = services.NewOrchestrator(services.Deps{
		Source:  rt.source,
		Store:   rt.store,
		Sink:    rt.sink,
		Bus:     rt.bus,
		Formats: services.TableFor(cfg.Platform, cfg.Formats),
		Logger:  rt.log,
	},
		services.WithTiming(cfg.Pacing.Timing()),
		services.WithImageHost(cfg.Mubu.ImageHost),
		services.WithNaming(data.Naming{
			TimestampSource: cfg.Naming.TimestampSource,
			TimestampFormat: cfg.Naming.TimestampFormat,
		}),
		services.WithFrontMatter(cfg.Export.FrontMatter),
		services.WithBaseContext(base),
	)
	if err := rt.orch.Load(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close stops any running job loop and releases the store and log file. An
// interrupted job stays marked as exporting and resumes on the next export.
func (rt *runtime) Close() {
	if rt.stop != nil {
		rt.stop()
	}
	if rt.orch != nil {
		rt.orch.Wait()
	}
	if rt.bus != nil {
		rt.bus.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// defaultLogFile is where the interactive export sends its logs.
func defaultLogFile() string {
	return filepath.Join(config.StateDir(), "docport.log")
}
