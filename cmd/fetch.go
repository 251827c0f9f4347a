// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/httperrors"
)

// fetchCmd performs a GET against the service through the shared client,
// which attaches the session credential when one exists.
var fetchCmd = &cobra.Command{
	Use:   "fetch <path>",
	Short: "GET a path on the service as the current user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd.Context())
		if err != nil {
			return err
		}
		url := strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(args[0], "/")

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		started := time.Now()
		resp, err := a.client.Do(req)
		if err != nil {
			err = autherrors.Wrap(autherrors.Transport, httperrors.Describe(err), err)
			a.record("fetch", started, err)
			return showFailure(err, "fetching "+args[0])
		}
		defer resp.Body.Close()
		a.record("fetch", started, nil)

		fmt.Fprintf(os.Stderr, "%s %s\n", resp.Proto, resp.Status)
		_, err = io.Copy(os.Stdout, resp.Body)
		return err
	},
	Annotations: sessionCommand(),
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
