package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/session"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the portal",
		Long: `Sign in to the portal and store the session token in the configuration
file. Accounts that still have a mandatory password change outstanding must
supply --new-password to complete the reset as part of the sign-in.

Examples:
  qualtrack login --email iqa@example.test --password secret
  qualtrack login --email new@example.test --password temp --new-password chosen-password`,
		RunE: runLogin,
	}

	cmd.Flags().String("email", "", "Account email address")
	cmd.Flags().String("password", "", "Account password")
	cmd.Flags().String("new-password", "", "New password, for accounts with a pending mandatory reset")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	store, _, err := newSession()
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	newPassword, _ := cmd.Flags().GetString("new-password")

	result, err := store.Login(cmd.Context(), session.Credentials{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return errors.Wrap(err, "login failed")
	}

	if result.PendingResetToken != "" {
		if newPassword == "" {
			return errors.New("a password change is required before signing in; re-run with --new-password")
		}
		result, err = store.CompletePasswordReset(cmd.Context(), result.PendingResetToken, newPassword)
		if err != nil {
			return errors.Wrap(err, "password reset failed")
		}
	}

	if jsonOutput {
		printJSON(map[string]any{
			"status":       "success",
			"display_name": result.DisplayName,
			"role":         string(result.Role),
		})
	} else {
		okLabel.Println("✓ Login successful")
		fmt.Printf("Signed in as %s (%s)\n", result.DisplayName, result.Role)
	}

	return nil
}
