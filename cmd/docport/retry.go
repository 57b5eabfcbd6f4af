package cmd

import (
	"errors"
	"fmt"

	"github.com/kerbaras/docport/pkg/services"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Export the failed documents again",
	Long:  "Reset every failed document to pending and run the export in the foreground",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")

		return runForeground(cmd, plain, func(rt *runtime) error {
			err := rt.orch.RetryFailed(cmd.Context())
			if errors.Is(err, services.ErrNothingToRetry) {
				fmt.Println("✅ Nothing to retry, no document has failed.")
				return errNothingToDo
			}
			return err
		})
	},
}

func init() {
	retryCmd.Flags().Bool("plain", false, "print line-based progress instead of the interactive view")
}
