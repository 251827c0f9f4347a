// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides thread-safe secure storage for the session token.
// It manages all interactions with the OS keychain/credential store and is the
// production implementation of the session store the auth core depends on.
//
// The package supports macOS Keychain (through the native security command or
// the keyring library), Windows Credential Manager, Linux Secret Service, KWallet
// and pass, with an encrypted file as the last resort. Storage is encrypted at rest
// by whichever backend is chosen.
package keychain

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/logging"
	"authkit/cli/internal/xdg"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "authkit"

// KeySessionToken is the fixed key the session token is stored under.
const KeySessionToken = "session_token"

// errNotFound is returned by native backends for missing keys.
var errNotFound = errors.New("key not found")

// keychainBackend defines the interface for native keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Options configures Open.
type Options struct {
	// Backends restricts the keyring library to these backends, in order.
	// Empty selects the platform default.
	Backends []string
	// FileDir is used by the encrypted file backend.
	// Empty means the XDG data directory.
	FileDir string
	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
	log     *slog.Logger
}

// Open creates a Manager over the OS keyring.
func Open(opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	// Try native security backend first on macOS when no backend was pinned.
	if runtime.GOOS == "darwin" && len(opts.Backends) == 0 {
		backend, err := newSecurityBackend(log)
		if err == nil {
			log.Debug("keychain: using macOS security command")
			return &Manager{backend: backend, log: log}, nil
		}
		log.Debug("keychain: security command unavailable, falling back to keyring", "err", err)
	}

	ring, err := openRing(opts)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.Storage, "secure storage unavailable", err)
	}
	return &Manager{ring: ring, log: log}, nil
}

// NewMemory returns a Manager backed by an in-process keyring.
// Nothing survives the process; used for tests and ephemeral sessions.
func NewMemory() *Manager {
	return &Manager{ring: keyring.NewArrayKeyring(nil), log: logging.Discard()}
}

// defaultBackends lists the keyring backends tried on the current platform.
func defaultBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		// Pass requires 'pass' utility installed: brew install pass
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
	}
}

// openRing opens the OS keyring restricted to the allowed backends.
func openRing(opts Options) (keyring.Keyring, error) {
	allowed := defaultBackends()
	if len(opts.Backends) > 0 {
		allowed = allowed[:0]
		for _, b := range opts.Backends {
			allowed = append(allowed, keyring.BackendType(b))
		}
	}

	if opts.FileDir == "" {
		if dir, err := xdg.DataDir(); err == nil {
			opts.FileDir = dir
		}
	}

	cfg := keyring.Config{
		ServiceName:      ServiceName,
		AllowedBackends:  allowed,
		PassPrefix:       ServiceName,
		KWalletAppID:     ServiceName,
		KWalletFolder:    ServiceName,
		FileDir:          opts.FileDir,
		FilePasswordFunc: keyring.TerminalPrompt,
	}

	// Hint prefixes where supported to minimize namespace collisions
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	return keyring.Open(cfg)
}

// Read returns the value stored under key. A missing key is not an error.
func (m *Manager) Read(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, autherrors.Wrap(autherrors.Storage, "read cancelled", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		value string
		err   error
	)
	if m.backend != nil {
		value, err = m.backend.Get(key)
	} else {
		var it keyring.Item
		it, err = m.ring.Get(key)
		value = string(it.Data)
	}
	if isNotFound(err) {
		m.log.Debug("keychain: no value", "key", key)
		return "", false, nil
	}
	if err != nil {
		return "", false, autherrors.Wrap(autherrors.Storage, "could not read secure storage", err)
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Write stores value under key, replacing any previous value.
func (m *Manager) Write(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return autherrors.Wrap(autherrors.Storage, "write cancelled", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.backend != nil {
		err = m.backend.Set(key, value)
	} else {
		err = m.ring.Set(keyring.Item{
			Key:         key,
			Data:        []byte(value),
			Label:       ServiceName + " " + key,
			Description: "authkit session credential",
		})
	}
	if err != nil {
		return autherrors.Wrap(autherrors.Storage, "could not write secure storage", err)
	}
	m.log.Debug("keychain: stored value", "key", key, "len", len(value))
	return nil
}

// Remove deletes key. Removing a key that does not exist succeeds.
func (m *Manager) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return autherrors.Wrap(autherrors.Storage, "remove cancelled", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.backend != nil {
		err = m.backend.Delete(key)
	} else {
		err = m.ring.Remove(key)
	}
	if err != nil && !isNotFound(err) {
		return autherrors.Wrap(autherrors.Storage, "could not clear secure storage", err)
	}
	m.log.Debug("keychain: removed value", "key", key)
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, errNotFound)
}
