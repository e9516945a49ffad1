package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigName = "agentcore.yaml"

func defaultConfigPath() string {
	if p := os.Getenv("AGENTCORE_CONFIG"); p != "" {
		return p
	}
	return defaultConfigName
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
}

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		sessionID  string
		userID     string
		stream     bool
		showEvents bool
	)
	cmd := &cobra.Command{
		Use:   "run [input...]",
		Short: "Run the configured agent once",
		Long: `Run the configured agent with the given input. Without arguments the
input is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, runParams{
				configPath: configPath,
				sessionID:  sessionID,
				userID:     userID,
				stream:     stream,
				showEvents: showEvents,
				args:       args,
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session ID to continue (a new session when empty)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID of the run")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the answer as it is generated")
	cmd.Flags().BoolVar(&showEvents, "show-events", false, "Print run lifecycle events to stderr")
	return cmd
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage persisted sessions",
	}
	cmd.AddCommand(
		buildSessionsListCmd(),
		buildSessionsShowCmd(),
		buildSessionsDeleteCmd(),
	)
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var (
		configPath string
		userID     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, configPath, userID)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Only list sessions of this user")
	return cmd
}

func buildSessionsShowCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd, configPath, args[0])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func buildSessionsDeleteCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, configPath, args[0])
		},
	}
	addConfigFlag(cmd, &configPath)
	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	var configPath string
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, configPath)
		},
	}
	addConfigFlag(validate, &configPath)
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON Schema of the configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSchema(cmd)
			},
		},
		validate,
	)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agentcore %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
