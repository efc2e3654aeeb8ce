package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/roles"
)

// newChangeRoleCmd creates and returns a new change-role command
func newChangeRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-role <role>",
		Short: "Switch the session to another of the account's roles",
		Long: `Switch the active session to another role without re-entering
credentials. The server re-issues the session token for the new role.

Example:
  qualtrack change-role trainer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := roles.Parse(args[0])
			if !ok {
				return fmt.Errorf("unknown role %q", args[0])
			}

			store, _, err := newSession()
			if err != nil {
				return err
			}
			if _, _, ok := store.Current(); !ok {
				return errors.New("not signed in")
			}

			result, err := store.ChangeRole(cmd.Context(), role)
			if err != nil {
				return errors.Wrap(err, "role change failed")
			}

			if jsonOutput {
				printJSON(map[string]any{
					"status":    "success",
					"role":      string(result.Role),
					"home_view": roles.HomeViewFor(result.Role).String(),
				})
			} else {
				okLabel.Printf("✓ Role changed to %s\n", result.Role)
				fmt.Printf("Home view: %s\n", roles.HomeViewFor(result.Role))
			}
			return nil
		},
	}
}
