// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"authkit/cli/internal/authapi"
	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/httperrors"
	"authkit/cli/internal/keychain"
	"authkit/cli/internal/logging"
)

// Authenticator is the remote authentication service.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*authapi.Response, error)
	Login(ctx context.Context, email, password string) (*authapi.Response, error)
}

// Store is the secure key-value storage holding the token between runs.
// Read reports a missing key as ok == false with a nil error.
type Store interface {
	Read(ctx context.Context, key string) (value string, ok bool, err error)
	Write(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithStorageKey overrides the key the token is stored under.
func WithStorageKey(key string) Option {
	return func(m *Manager) { m.key = key }
}

// Manager holds the single authoritative Session for the process.
type Manager struct {
	api   Authenticator
	store Store
	key   string
	log   *slog.Logger

	// mutation admits one session-changing operation at a time.
	mutation *semaphore.Weighted

	mu        sync.RWMutex
	state     Session
	listeners map[int]func(Session)
	nextID    int

	loaded    bool // guarded by mutation
	ready     chan struct{}
	startOnce sync.Once
}

// New constructs a Manager in the unknown state. Call Start or Load to
// consult secure storage.
func New(api Authenticator, store Store, opts ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		key:       keychain.KeySessionToken,
		log:       logging.Discard(),
		mutation:  semaphore.NewWeighted(1),
		listeners: make(map[int]func(Session)),
		ready:     make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start runs Load in the background. Repeated calls are no-ops.
// Ready always closes: if ctx ends before the load can run, the session
// settles as unauthenticated without consulting storage.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go func() {
			if err := m.Load(ctx); err != nil {
				m.log.Debug("session: startup load did not run, starting logged out", "err", err)
				m.settle()
			}
		}()
	})
}

// settle finishes startup as unauthenticated unless a load already ran.
func (m *Manager) settle() {
	_ = m.mutation.Acquire(context.Background(), 1) // cannot fail without cancellation
	defer m.mutation.Release(1)

	if m.loaded {
		return
	}
	m.loaded = true
	defer close(m.ready)
	m.transition(unauthenticated(), true)
}

// Ready is closed once the startup load has finished.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Load reads the persisted token and settles the unknown state. A stored token
// makes the session authenticated; a missing token or unreadable storage makes
// it unauthenticated. Load runs at most once and never overrides a session that
// Login or Logout already settled. It only fails when ctx ends before the load
// could start.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.mutation.Acquire(ctx, 1); err != nil {
		return autherrors.Wrap(autherrors.Cancelled, "session load cancelled", err)
	}
	defer m.mutation.Release(1)

	if m.loaded {
		return nil
	}
	m.loaded = true
	defer close(m.ready)

	token, ok, err := m.store.Read(ctx, m.key)
	if err != nil {
		m.log.Warn("session: could not read stored token, starting logged out", "err", err)
		ok = false
	}
	token = strings.TrimSpace(token)

	next := unauthenticated()
	if ok && token != "" {
		next = authenticated(token)
	}
	if !m.transition(next, true) {
		m.log.Debug("session: startup load skipped, session already settled")
		return nil
	}
	m.log.Debug("session: loaded", "status", next.Status.String())
	return nil
}

// Register creates an account. It does not log in and leaves the session
// and storage untouched. Failures are *errors.E.
func (m *Manager) Register(ctx context.Context, email, password string) (*authapi.Response, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	resp, err := m.api.Register(ctx, email, password)
	if err != nil {
		m.log.Debug("session: register failed", "err", err)
		return nil, normalize(err)
	}
	m.log.Info("session: registered", "email", email)
	return resp, nil
}

// Login authenticates and establishes the session. On success the in-memory
// session changes first, then the token is persisted; a persistence failure
// leaves the session valid for this process only. On failure the session is
// unchanged and the error is an *errors.E.
func (m *Manager) Login(ctx context.Context, email, password string) (*authapi.Response, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	if err := m.mutation.Acquire(ctx, 1); err != nil {
		return nil, autherrors.Wrap(autherrors.Cancelled, "login cancelled", err)
	}
	defer m.mutation.Release(1)

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.log.Debug("session: login failed", "err", err)
		return nil, normalize(err)
	}
	token := resp.Token()
	if token == "" {
		return nil, autherrors.Rejection(resp.StatusCode, "missing token in response")
	}

	m.transition(authenticated(token), false)

	// The session is already established; persist even if the caller gives up now.
	if err := m.store.Write(context.WithoutCancel(ctx), m.key, token); err != nil {
		m.log.Warn("session: token not persisted, session will not survive restart", "err", err)
	}
	m.log.Info("session: logged in", "email", email, "token", logging.MaskToken(token))
	return resp, nil
}

// SignUp registers and, when that succeeds, logs in with the same credentials.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*authapi.Response, error) {
	if _, err := m.Register(ctx, email, password); err != nil {
		return nil, err
	}
	return m.Login(ctx, email, password)
}

// Logout ends the session. It always succeeds: a storage failure is logged
// and the in-memory session is cleared regardless. It waits for an in-flight
// Login to finish rather than racing it.
func (m *Manager) Logout(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	_ = m.mutation.Acquire(ctx, 1) // cannot fail without cancellation
	defer m.mutation.Release(1)

	if err := m.store.Remove(ctx, m.key); err != nil {
		m.log.Warn("session: stored token not removed, it will be found on next start", "err", err)
	}
	m.transition(unauthenticated(), false)
	m.log.Info("session: logged out")
}

// State returns a snapshot of the current session.
func (m *Manager) State() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Credential returns the Authorization header value for the current session,
// or "" when there is none.
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Token == "" {
		return ""
	}
	return "Bearer " + m.state.Token
}

// Subscribe registers fn to be called with the new session after every change.
// Calls happen in change order without the state lock held, so fn may call State.
// fn runs while the changing operation still holds its turn, so it must not
// call Load, Login or Logout: those would wait for fn forever.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// transition installs next and notifies listeners. With onlyFromUnknown set,
// the change only happens while the session is still unknown.
// Callers hold the mutation semaphore.
func (m *Manager) transition(next Session, onlyFromUnknown bool) bool {
	m.mu.Lock()
	if onlyFromUnknown && m.state.Status != StatusUnknown {
		m.mu.Unlock()
		return false
	}
	prev := m.state
	m.state = next
	fns := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if prev.Status != next.Status {
		m.log.Debug("session: status changed", "from", prev.Status.String(), "to", next.Status.String())
	}
	for _, fn := range fns {
		fn(next)
	}
	return true
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return autherrors.New(autherrors.InvalidInput, "email is required")
	}
	if password == "" {
		return autherrors.New(autherrors.InvalidInput, "password is required")
	}
	return nil
}

// normalize makes sure err is an *errors.E.
func normalize(err error) error {
	if autherrors.KindOf(err) != "" {
		return err
	}
	return autherrors.Wrap(autherrors.Transport, httperrors.Describe(err), err)
}
