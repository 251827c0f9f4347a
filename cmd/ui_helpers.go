// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"

	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/httperrors"
	"authkit/cli/internal/logging"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal. The spinner runs in a separate goroutine and
// can be stopped by calling the returned function, which also clears the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	cursor.Hide()
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	return func() {
		close(stop)
		wg.Wait()
		cursor.Show()
	}
}

// serviceTarget names the service host for failure messages, e.g. "logging in to api.example.com".
func serviceTarget(doing, baseURL string) string {
	return doing + " to " + httperrors.ExtractHostFromURL(baseURL)
}

// showFailure prints a normalized error the way the user should see it.
// Transport failures get troubleshooting hints; everything else prints its message.
func showFailure(err error, doing string) error {
	var e *autherrors.E
	if !errors.As(err, &e) {
		return err
	}
	if e.Kind == autherrors.Transport && e.Err != nil {
		httperrors.Show(e.Err, doing)
		return err
	}
	pterm.Error.Println(logging.PresentError("Failed "+doing, err))
	return err
}
