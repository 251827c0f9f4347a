// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"authkit/cli/internal/authapi"
	"authkit/cli/internal/config"
	"authkit/cli/internal/keychain"
	"authkit/cli/internal/logging"
	"authkit/cli/internal/metrics"
	"authkit/cli/internal/session"
)

// app is everything a command needs, built once per process.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	session *session.Manager
	// client is the shared HTTP client; it carries the session credential.
	client  *http.Client
	metrics *metrics.Recorder
}

type appKey struct{}

func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("internal error: application not initialised")
	}
	return a, nil
}

// newApp loads configuration, opens secure storage and waits for the session
// manager to read the persisted token.
func newApp(ctx context.Context, f appFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.baseURL != "" {
		cfg.BaseURL = f.baseURL
	}
	if f.timeout > 0 {
		cfg.Timeout = config.Duration(f.timeout)
	}
	if f.metricsFile != "" {
		cfg.MetricsFile = f.metricsFile
	}
	if f.verbose || config.Verbose() {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logging.New(os.Stderr, cfg.LogLevel, f.jsonLogs)
	timeout := time.Duration(cfg.Timeout)

	var store session.Store
	if f.ephemeral {
		store = keychain.NewMemory()
	} else {
		km, err := keychain.Open(keychain.Options{
			Backends: cfg.Keyring.Backends,
			FileDir:  cfg.Keyring.FileDir,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		store = km
	}

	api := authapi.New(cfg.BaseURL,
		authapi.WithTimeout(timeout),
		authapi.WithUserAgent("authkit-cli/"+Version),
		authapi.WithLogger(log),
	)
	mgr := session.New(api, store, session.WithLogger(log))
	rec := metrics.New()
	mgr.Subscribe(func(s session.Session) {
		rec.SetAuthenticated(s.Status == session.StatusAuthenticated)
	})
	mgr.Start(ctx)

	select {
	case <-mgr.Ready():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &app{
		cfg:     cfg,
		log:     log,
		session: mgr,
		client:  mgr.Client(timeout),
		metrics: rec,
	}, nil
}

// record counts a finished operation and refreshes the metrics file when one is configured.
func (a *app) record(operation string, started time.Time, err error) {
	a.metrics.Observe(operation, started, err)
	if a.cfg.MetricsFile == "" {
		return
	}
	if werr := a.metrics.WriteTextfile(a.cfg.MetricsFile); werr != nil {
		a.log.Warn("metrics: could not write textfile", "path", a.cfg.MetricsFile, "err", werr)
	}
}
