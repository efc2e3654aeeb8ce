package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/qualtrack/qualtrack/internal/common/version"
	"github.com/qualtrack/qualtrack/internal/portal/config"
	"github.com/qualtrack/qualtrack/internal/portal/roles"
)

// statusCmd reports the server version, compatibility with this CLI, and the
// local session state. It never requires a working session.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and session status",
	Long: `Show server and session status: the server's version, whether this CLI
supports it, and who is currently signed in.

Examples:
  qualtrack status
  qualtrack status -j`,
	RunE: getStatus,
}

func getStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]string{
				"version_cli": getCLIVersion(),
				"error":       "Config file cannot be loaded",
			})
		} else {
			fmt.Printf("qualtrack CLI %s\n", getCLIVersion())
			fmt.Println("Error: Config file cannot be loaded")
		}
		return ErrAlreadyHandled
	}
	cliConfig = cfg

	store, _, err := newSession()
	if err != nil {
		return err
	}

	body, err := store.Client().Get(cmd.Context(), "/version", nil)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]string{
				"version_cli": getCLIVersion(),
				"error":       "Unable to connect to server: " + err.Error(),
			})
		} else {
			fmt.Printf("qualtrack CLI %s\n", getCLIVersion())
			fmt.Println("Error: Unable to connect to server: " + err.Error())
		}
		return ErrAlreadyHandled
	}

	serverVersion := gjson.GetBytes(body, "data.serverVersion").String()
	apiVersion := gjson.GetBytes(body, "data.apiVersion").String()
	compatible, compatNote := checkServerCompat(serverVersion)

	sessionState := "signed out"
	role := roles.Guest
	if r, claims, ok := store.Current(); ok {
		role = r
		sessionState = fmt.Sprintf("signed in as %s (%s)", claims.DisplayName(), r)
	}

	if jsonOutput {
		printJSON(map[string]any{
			"version_cli":    getCLIVersion(),
			"server_version": serverVersion,
			"api_version":    apiVersion,
			"compatible":     compatible,
			"session":        sessionState,
			"home_view":      roles.HomeViewFor(role).String(),
		})
		return nil
	}

	fmt.Printf("qualtrack CLI %s\n", getCLIVersion())
	fmt.Printf("Server version: %s\n", serverVersion)
	fmt.Printf("API version: %s\n", apiVersion)
	if compatible {
		okLabel.Println("✓ Server version is supported")
	} else {
		errorLabel.Printf("✗ %s\n", compatNote)
	}
	fmt.Printf("Session: %s\n", sessionState)
	fmt.Printf("Home view: %s\n", roles.HomeViewFor(role))
	if expiry := cfg.GetTokenExpiry(); !expiry.IsZero() {
		fmt.Printf("Token expires: %s\n", expiry.Format(time.RFC3339))
	}
	return nil
}

// checkServerCompat compares the server's semantic version against the
// minimum this CLI supports.
func checkServerCompat(serverVersion string) (bool, string) {
	raw := strings.TrimPrefix(serverVersion, "v")
	if raw == "" {
		return false, "server did not report a version"
	}
	got, err := semver.NewVersion(raw)
	if err != nil {
		return false, fmt.Sprintf("unrecognised server version %q", serverVersion)
	}
	min := semver.MustParse(version.MinServerVersion)
	if got.LessThan(min) {
		return false, fmt.Sprintf("server version %s is older than the minimum supported %s", got, min)
	}
	return true, ""
}
