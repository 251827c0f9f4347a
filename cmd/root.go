// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for authkit.
// It is a thin presentation layer: commands collect credentials, call into the
// session manager, and print whatever message the manager returns. All state
// handling lives in internal/session.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	autherrors "authkit/cli/internal/errors"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	flags       appFlags
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "authkit",
	Short:         "Log in to the authentication service and keep the session in the OS keychain",
	Long:          `authkit registers accounts, logs in and out, and keeps the session token in the OS keychain so later runs stay logged in.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[needsSession] != "true" {
			return nil
		}
		a, err := newApp(cmd.Context(), flags)
		if err != nil {
			return err
		}
		cmd.SetContext(withApp(cmd.Context(), a))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("authkit %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// Errors already shown to the user by a command are not printed a second time.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var shown *autherrors.E
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show CLI version information")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.baseURL, "base-url", "", "Authentication service URL (overrides config)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "Request timeout, e.g. 5s (overrides config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose debug output")
	pf.BoolVar(&flags.ephemeral, "ephemeral", false, "Keep the session in memory only")
	pf.BoolVar(&flags.jsonLogs, "log-json", false, "Write logs as JSON")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path (overrides config)")
}

// needsSession marks commands that run against the session manager.
const needsSession = "session"

// sessionCommand is the annotation set for commands that need the session manager.
func sessionCommand() map[string]string {
	return map[string]string{needsSession: "true"}
}

// appFlags are the persistent flags shared by every command.
type appFlags struct {
	baseURL   string
	timeout   time.Duration
	verbose   bool
	ephemeral bool
	jsonLogs  bool

	metricsFile string
}
