package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	serverURL  string
	loginUser  string
	loginPass  string
	projectID  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "polarion",
	Short: "A command line client for Polarion work items, plans and test runs",
	Long: `polarion talks to a Polarion ALM server over its web service API.
It loads entities, shows rich text as plain text, applies field edits as
minimal diffs, and mirrors local directories against attachments.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Connection profile path (default ~/.polarion.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Polarion base URL (overrides the profile)")
	rootCmd.PersistentFlags().StringVar(&loginUser, "user", "", "Login user (overrides the profile)")
	rootCmd.PersistentFlags().StringVar(&loginPass, "password", "", "Login password (overrides the profile)")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "Project id (overrides the profile)")
}
