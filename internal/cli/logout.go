package cli

import (
	"github.com/spf13/cobra"
)

// newLogoutCmd creates and returns a new logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and discard the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := newSession()
			if err != nil {
				return err
			}

			store.Logout()

			if jsonOutput {
				printJSON(map[string]string{"status": "success"})
			} else {
				okLabel.Println("✓ Logged out")
			}
			return nil
		},
	}
}
