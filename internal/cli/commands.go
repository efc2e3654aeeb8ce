// Package cli implements the qualtrack command line client: sign-in and
// session management plus the QA sample-plan workflows, speaking to the
// portal API.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/common/logtrace"
	"github.com/qualtrack/qualtrack/internal/common/version"
	"github.com/qualtrack/qualtrack/internal/portal/config"
	"github.com/qualtrack/qualtrack/internal/portal/events"
	"github.com/qualtrack/qualtrack/internal/portal/session"
)

var (
	// Global flags
	jsonOutput bool
	configFile string
)

// ErrAlreadyHandled marks errors whose message was already printed.
var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)

var cliConfig *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "qualtrack [command] [flags]",
	Short: "QualTrack CLI - quality assurance sampling from the command line",
	Long: `QualTrack CLI is a command line client for the QualTrack training-provider
portal. It signs in to the portal, browses QA sample plans, and records
sampling decisions.

Examples:
  # Sign in
  qualtrack login --email iqa@example.test

  # List the sample plans for a course
  qualtrack plans --course c1

  # Fetch the learners on a plan
  qualtrack filter --course c1 --plan p1

  # Apply sampled units
  qualtrack apply --course c1 --plan p1 --sample-type formative --select l1:U101`,
	PersistentPreRun: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(newChangeRoleCmd())
	rootCmd.AddCommand(newPlansCmd())
	rootCmd.AddCommand(newFilterCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newSampleCmd())
	rootCmd.AddCommand(newServeDevCmd())
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			printJSON(map[string]string{"error": err.Error()})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// preRunHandlePersistents loads the config file before command execution.
// Commands that must work without one (config, version, status, serve-dev)
// are exempt.
func preRunHandlePersistents(cmd *cobra.Command, args []string) {
	logtrace.InitConsoleLogger()
	logtrace.SetLevel(os.Getenv("QUALTRACK_LOG_LEVEL"))

	if configFile == "" {
		var err error
		configFile, err = config.GetDefaultConfigPath()
		if err != nil {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	exempt := false
	c := cmd
	for c != nil {
		switch c.Name() {
		case "config", "version", "status", "serve-dev":
			exempt = true
		}
		c = c.Parent()
	}
	if exempt {
		return
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("QualTrack config file not found. Configure qualtrack with \"qualtrack config create\" first.")
			os.Exit(1)
		}
		fmt.Printf("%s\n", err.Error())
		os.Exit(1)
	}
	if lvl := cfg.LogLevel; lvl != "" {
		logtrace.SetLevel(lvl)
	}
	cliConfig = cfg
}

// newSession builds a session store over the loaded config and restores any
// persisted token. An expired persisted token is reported but still leaves a
// usable guest session.
func newSession() (*session.Store, *events.Bus, error) {
	if cliConfig == nil {
		return nil, nil, errors.New("no configuration loaded")
	}
	bus := events.New()
	store := session.NewStore(cliConfig, bus)
	if err := store.Bootstrap(); err != nil && !errors.Is(err, session.ErrTokenExpired) {
		return nil, nil, err
	}
	return store, bus, nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the qualtrack CLI",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, err := config.GetDefaultConfigPath()
			if err != nil {
				configPath = "unknown"
			}

			if jsonOutput {
				printJSON(map[string]string{
					"version":     getCLIVersion(),
					"config_file": configPath,
				})
			} else {
				cmd.Printf("qualtrack CLI %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configPath)
			}
		},
	}
}

// printJSON prints the given value as indented JSON to stdout
func printJSON(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(jsonData))
}

func getCLIVersion() string {
	return "v" + version.Version
}
