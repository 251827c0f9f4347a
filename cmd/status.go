// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"authkit/cli/internal/logging"
	"authkit/cli/internal/token"
)

// statusCmd shows what the session manager believes about the current session.
// Token claims are decoded for display only and are not verified.
var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami", "me"},
	Short:   "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd.Context())
		if err != nil {
			return err
		}
		st := a.session.State()
		authed, known := st.IsAuthenticated()
		switch {
		case !known:
			fmt.Println("⏳ Session state is still loading")
			return nil
		case !authed:
			fmt.Println("🔒 You're not logged in yet!")
			fmt.Println("   Run 'authkit login' to get started.")
			return nil
		}

		info := token.Inspect(st.Token)
		if who := info.Identity(); who != "" {
			fmt.Printf("👤 Current user: %s\n", who)
		} else {
			fmt.Println("👤 Logged in")
		}
		fmt.Printf("   Service: %s\n", a.cfg.BaseURL)
		fmt.Printf("   Token:   %s\n", logging.MaskToken(st.Token))
		if !info.ExpiresAt.IsZero() {
			fmt.Printf("   Expires: %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	},
	Annotations: sessionCommand(),
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
