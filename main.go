// Package main is the entry point for the authkit CLI application.
// It manages a login session against an HTTP authentication service.
package main

import (
	"authkit/cli/cmd"
)

// main is the entry point for the authkit CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}
