package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the persisted job",
	Long:  "Discard the manifest, the per-document progress and the job log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.orch.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("🧹 Job state cleared.")
		return nil
	},
}
