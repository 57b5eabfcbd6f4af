package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kerbaras/docport/pkg/server"
	"github.com/kerbaras/docport/pkg/services"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the export job over HTTP",
	Long: "Serve the command API on /api/commands and stream job events on /api/events " +
		"so a browser or another process can drive the export",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ctx := cmd.Context()

		rt, err := setup(ctx, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr == "" {
			addr = rt.cfg.Server.Addr
		}
		controller := services.NewController(rt.orch, rt.source, rt.bus, rt.log)
		srv := server.New(controller, rt.bus, addr, server.WithLogger(rt.log))
		if err := srv.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("🌐 Listening on http://%s\n", srv.Addr())

		if rt.orch.Resume(ctx) {
			fmt.Println("⏯️  Resumed the interrupted export")
		}

		<-ctx.Done()
		fmt.Println("\n👋 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
}
