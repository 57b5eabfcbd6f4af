package cmd

import (
	"fmt"

	"github.com/kerbaras/docport/pkg/sources"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		infoer, ok := rt.source.(sources.UserInfoer)
		if !ok {
			return fmt.Errorf("%s does not expose account details", rt.source.Name())
		}
		user, err := infoer.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("👤 %s (%s)\n", user.Name, user.ID)
		if user.Email != "" {
			fmt.Printf("   %s\n", user.Email)
		}
		return nil
	},
}
