// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"os"
	"strings"

	"authkit/cli/internal/terminal"

	"github.com/spf13/cobra"
)

// credentialFlags lets scripts pass credentials without prompting.
type credentialFlags struct {
	email         string
	passwordStdin bool
}

func (c *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.email, "email", "e", "", "Account email (prompted when omitted)")
	cmd.Flags().BoolVar(&c.passwordStdin, "password-stdin", false, "Read the password from stdin")
}

// collect returns email and password from flags, stdin or interactive prompts.
func (c *credentialFlags) collect() (string, string, error) {
	p := terminal.NewPrompter(os.Stdin, os.Stdout)

	email := strings.TrimSpace(c.email)
	if email == "" {
		if c.passwordStdin {
			return "", "", errors.New("--email is required with --password-stdin")
		}
		var err error
		email, err = p.Line("Email: ")
		if err != nil {
			return "", "", err
		}
	}

	if c.passwordStdin {
		password, err := terminal.NewReaderPrompter(os.Stdin, os.Stdout).Line("")
		return email, password, err
	}
	const label = "Password: "
	password, err := p.Secret(label)
	if err == nil && p.Interactive() {
		terminal.ClearPreviousLines(len(label))
	}
	return email, password, err
}
