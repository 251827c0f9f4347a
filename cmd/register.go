// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	registerCreds credentialFlags
	registerOnly  bool
)

// registerCmd creates an account and, unless --no-login is given, logs straight in.
var registerCmd = &cobra.Command{
	Use:     "register",
	Aliases: []string{"signup"},
	Short:   "Create an account and log in",
	Long: `The register command creates an account on the authentication service with
the given email and password, then logs in with the same credentials.
Use --no-login to only create the account.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd.Context())
		if err != nil {
			return err
		}
		email, password, err := registerCreds.collect()
		if err != nil {
			return err
		}

		started := time.Now()
		stop := startInlineSpinner(os.Stdout, "Creating account", spinnerFrames, 120*time.Millisecond)
		if registerOnly {
			_, err = a.session.Register(cmd.Context(), email, password)
		} else {
			_, err = a.session.SignUp(cmd.Context(), email, password)
		}
		stop()
		a.record("register", started, err)
		if err != nil {
			return showFailure(err, serviceTarget("creating your account", a.cfg.BaseURL))
		}

		if registerOnly {
			pterm.Success.Printf("Account created for %s. Run 'authkit login' to sign in.\n", email)
			return nil
		}
		showLoginGreeting(a.session.State().Token, email)
		return nil
	},
	Annotations: sessionCommand(),
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCreds.register(registerCmd)
	registerCmd.Flags().BoolVar(&registerOnly, "no-login", false, "Only create the account")
}
