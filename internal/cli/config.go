package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/config"
)

// newConfigCmd creates the config command group
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the CLI configuration file",
	}
	cmd.AddCommand(newConfigCreateCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the configuration file",
		Long: `Create the configuration file pointing the CLI at a portal server.

Example:
  qualtrack config create --server localhost:8190`,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")

			path := configFile
			if path == "" {
				var err error
				path, err = config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg := config.NewConfig(server, path)
			if err := cfg.WriteConfig(); err != nil {
				return err
			}

			if jsonOutput {
				printJSON(map[string]string{
					"status":      "success",
					"config_file": path,
					"server_url":  cfg.GetServerURL(),
				})
			} else {
				okLabel.Println("✓ Configuration created")
				fmt.Printf("Config file: %s\n", path)
				fmt.Printf("Server: %s\n", cfg.GetServerURL())
			}
			return nil
		},
	}

	cmd.Flags().String("server", "", "Portal server as host:port")
	cmd.MarkFlagRequired("server")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if path == "" {
				var err error
				path, err = config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}

			authenticated := cfg.GetToken() != ""
			if jsonOutput {
				printJSON(map[string]any{
					"config_file":   path,
					"server_url":    cfg.GetServerURL(),
					"authenticated": authenticated,
				})
			} else {
				fmt.Printf("Config file: %s\n", path)
				fmt.Printf("Server: %s\n", cfg.GetServerURL())
				fmt.Printf("Authenticated: %t\n", authenticated)
			}
			return nil
		},
	}
}
