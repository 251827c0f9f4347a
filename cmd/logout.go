// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command for clearing authentication state.
// Logout is best-effort and never fails: the session ends even when the
// keychain entry cannot be removed.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and remove the stored token",
	Long: `The logout command ends the current session and removes the session token
from the OS keychain. It always succeeds; running it twice is harmless.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd.Context())
		if err != nil {
			return err
		}
		started := time.Now()
		a.session.Logout(cmd.Context())
		a.record("logout", started, nil)
		fmt.Println("✅ Logged out")
		return nil
	},
	Annotations: sessionCommand(),
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
