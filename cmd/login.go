// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"authkit/cli/internal/token"
)

var loginCreds credentialFlags

// loginCmd represents the login command.
// It collects email and password, hands them to the session manager and reports the outcome.
// The resulting token is kept in the OS keychain for later runs.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Log in with email and password",
	Long: `The login command sends your email and password to the authentication service.
On success the session token is stored in the OS keychain, so later commands
run as the logged-in user until you log out.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd.Context())
		if err != nil {
			return err
		}
		email, password, err := loginCreds.collect()
		if err != nil {
			return err
		}

		started := time.Now()
		stop := startInlineSpinner(os.Stdout, "Logging in", spinnerFrames, 120*time.Millisecond)
		_, err = a.session.Login(cmd.Context(), email, password)
		stop()
		a.record("login", started, err)
		if err != nil {
			return showFailure(err, serviceTarget("logging in", a.cfg.BaseURL))
		}

		showLoginGreeting(a.session.State().Token, email)
		return nil
	},
	Annotations: sessionCommand(),
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCreds.register(loginCmd)
}

// showLoginGreeting displays a greeting using the token's identity when it has one.
func showLoginGreeting(raw, fallback string) {
	who := token.Inspect(raw).Identity()
	if who == "" {
		who = fallback
	}
	pterm.Success.Printf("Logged in as %s\n", who)
}
