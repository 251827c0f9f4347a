// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authkit/cli/internal/authapi"
	autherrors "authkit/cli/internal/errors"
	"authkit/cli/internal/keychain"
)

// fakeService is an in-process authentication service.
type fakeService struct {
	mu        sync.Mutex
	users     map[string]string
	tokens    map[string]string
	registers int
}

func newFakeService() *fakeService {
	return &fakeService{users: map[string]string{}, tokens: map[string]string{}}
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var creds authapi.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad request"}`))
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case authapi.PathRegister:
		if _, exists := f.users[creds.Email]; exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"msg":"user already exists"}`))
			return
		}
		f.users[creds.Email] = creds.Password
		f.registers++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"email":"` + creds.Email + `"}`))
	case authapi.PathLogin:
		if pw, ok := f.users[creds.Email]; !ok || pw != creds.Password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.tokens[creds.Email]})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeService) addUser(email, password, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = password
	f.tokens[email] = token
}

func (f *fakeService) setToken(email, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[email] = token
}

// faultyStore wraps a keychain.Manager and injects failures.
type faultyStore struct {
	*keychain.Manager
	readErr, writeErr, removeErr error
}

func (s *faultyStore) Read(ctx context.Context, key string) (string, bool, error) {
	if s.readErr != nil {
		return "", false, s.readErr
	}
	return s.Manager.Read(ctx, key)
}

func (s *faultyStore) Write(ctx context.Context, key, value string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Manager.Write(ctx, key, value)
}

func (s *faultyStore) Remove(ctx context.Context, key string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Manager.Remove(ctx, key)
}

type fixture struct {
	svc   *fakeService
	srv   *httptest.Server
	store *faultyStore
	mgr   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := newFakeService()
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	store := &faultyStore{Manager: keychain.NewMemory()}
	return &fixture{
		svc:   svc,
		srv:   srv,
		store: store,
		mgr:   New(authapi.New(srv.URL), store),
	}
}

func (f *fixture) stored(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.store.Manager.Read(context.Background(), keychain.KeySessionToken)
	require.NoError(t, err)
	return v, ok
}

func TestNewManagerStartsUnknown(t *testing.T) {
	f := newFixture(t)
	st := f.mgr.State()
	assert.Equal(t, StatusUnknown, st.Status)
	assert.Empty(t, st.Token)

	_, known := st.IsAuthenticated()
	assert.False(t, known)
	assert.Empty(t, f.mgr.Credential())
}

func TestLoginEstablishesAndPersistsSession(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")

	resp, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "T1", resp.Token())

	st := f.mgr.State()
	assert.Equal(t, Session{Token: "T1", Status: StatusAuthenticated}, st)
	authed, known := st.IsAuthenticated()
	assert.True(t, authed)
	assert.True(t, known)
	assert.Equal(t, "Bearer T1", f.mgr.Credential())

	v, ok := f.stored(t)
	assert.True(t, ok)
	assert.Equal(t, "T1", v)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	f.mgr.Logout(context.Background())

	assert.Equal(t, Session{Status: StatusUnauthenticated}, f.mgr.State())
	assert.Empty(t, f.mgr.Credential())
	_, ok := f.stored(t)
	assert.False(t, ok)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "abc123"))
	require.NoError(t, f.mgr.Load(context.Background()))

	f.mgr.Logout(context.Background())
	once := f.mgr.State()
	f.mgr.Logout(context.Background())

	assert.Equal(t, once, f.mgr.State())
	assert.Equal(t, Session{Status: StatusUnauthenticated}, f.mgr.State())
}

func TestLogoutSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	f.store.removeErr = autherrors.New(autherrors.Storage, "keychain locked")
	f.mgr.Logout(context.Background())

	assert.Equal(t, Session{Status: StatusUnauthenticated}, f.mgr.State())
	assert.Empty(t, f.mgr.Credential())

	// The stale token is still on disk and is picked up by the next process.
	v, ok := f.stored(t)
	assert.True(t, ok)
	assert.Equal(t, "T1", v)
}

func TestLoadFindsPersistedToken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "abc123"))

	require.NoError(t, f.mgr.Load(context.Background()))

	assert.Equal(t, Session{Token: "abc123", Status: StatusAuthenticated}, f.mgr.State())
	assert.Equal(t, "Bearer abc123", f.mgr.Credential())
}

func TestLoadWithoutTokenIsUnauthenticated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.Load(context.Background()))

	authed, known := f.mgr.State().IsAuthenticated()
	assert.False(t, authed)
	assert.True(t, known)
}

func TestLoadTreatsReadFailureAsNoToken(t *testing.T) {
	f := newFixture(t)
	f.store.readErr = errors.New("secret service not running")

	require.NoError(t, f.mgr.Load(context.Background()))
	assert.Equal(t, Session{Status: StatusUnauthenticated}, f.mgr.State())
}

func TestLoadRunsOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.Load(context.Background()))

	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "late"))
	require.NoError(t, f.mgr.Load(context.Background()))

	assert.Equal(t, StatusUnauthenticated, f.mgr.State().Status)
}

func TestLoadNeverOverridesCompletedLogin(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "NEW")
	require.NoError(t, f.store.Manager.Write(context.Background(), keychain.KeySessionToken, "OLD"))

	// Persisting fails, so storage still holds the previous token.
	f.store.writeErr = errors.New("disk full")
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Load(context.Background()))
	assert.Equal(t, "NEW", f.mgr.State().Token)
}

func TestStartClosesReady(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "abc123"))

	f.mgr.Start(context.Background())
	f.mgr.Start(context.Background())

	select {
	case <-f.mgr.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("startup load did not finish")
	}
	assert.Equal(t, "abc123", f.mgr.State().Token)
}

func TestStartWithCancelledContextSettles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "abc123"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.mgr.Start(ctx)

	select {
	case <-f.mgr.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("Ready never closed; state=%s", f.mgr.State().Status)
	}
	authed, known := f.mgr.State().IsAuthenticated()
	assert.True(t, known)
	assert.False(t, authed)
}

func TestSettleAfterLoadKeepsLoadedSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(context.Background(), keychain.KeySessionToken, "abc123"))
	require.NoError(t, f.mgr.Load(context.Background()))

	f.mgr.settle() // would panic on a second close of ready

	assert.Equal(t, "abc123", f.mgr.State().Token)
	assert.Equal(t, StatusAuthenticated, f.mgr.State().Status)
}

func TestLoginRejectionLeavesSessionUnchanged(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T0")
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	before := f.mgr.State()

	resp, err := f.mgr.Login(context.Background(), "a@b.c", "wrong")
	require.Error(t, err)
	assert.Nil(t, resp)

	var e *autherrors.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, autherrors.Rejected, e.Kind)
	assert.Equal(t, "invalid credentials", e.Message)
	assert.Equal(t, http.StatusUnauthorized, e.Status)

	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":true,"message":"invalid credentials"}`, string(b))

	assert.Equal(t, before, f.mgr.State())
	v, _ := f.stored(t)
	assert.Equal(t, "T0", v)
}

func TestLoginWithoutTokenIsRejected(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "")

	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, autherrors.Rejected, autherrors.KindOf(err))
	assert.Equal(t, "missing token in response", autherrors.MessageOf(err))
	assert.Equal(t, StatusUnknown, f.mgr.State().Status)
}

func TestLoginTransportFailureIsNormalized(t *testing.T) {
	f := newFixture(t)
	f.srv.Close()

	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, autherrors.Transport, autherrors.KindOf(err))
	assert.NotEmpty(t, autherrors.MessageOf(err))
	assert.Equal(t, StatusUnknown, f.mgr.State().Status)
}

func TestLoginSurvivesStorageWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")
	f.store.writeErr = autherrors.New(autherrors.Storage, "keychain locked")

	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	assert.Equal(t, Session{Token: "T1", Status: StatusAuthenticated}, f.mgr.State())
	_, ok := f.stored(t)
	assert.False(t, ok)
}

func TestRegisterDoesNotTouchSession(t *testing.T) {
	f := newFixture(t)

	resp, err := f.mgr.Register(context.Background(), "new@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"email":"new@b.c"}`, string(resp.Body))

	assert.Equal(t, StatusUnknown, f.mgr.State().Status)
	_, ok := f.stored(t)
	assert.False(t, ok)
}

func TestRegisterRejection(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")

	_, err := f.mgr.Register(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, autherrors.Rejected, autherrors.KindOf(err))
	assert.Equal(t, "user already exists", autherrors.MessageOf(err))
}

func TestSignUpRegistersThenLogsIn(t *testing.T) {
	f := newFixture(t)
	f.svc.setToken("new@b.c", "T-new")

	_, err := f.mgr.SignUp(context.Background(), "new@b.c", "pw")
	require.NoError(t, err)
	f.svc.mu.Lock()
	assert.Equal(t, 1, f.svc.registers)
	f.svc.mu.Unlock()
	assert.Equal(t, "T-new", f.mgr.State().Token)
}

func TestCredentialsAreRequired(t *testing.T) {
	tests := []struct {
		name, email, password string
	}{
		{name: "empty email", email: "", password: "pw"},
		{name: "blank email", email: "   ", password: "pw"},
		{name: "empty password", email: "a@b.c", password: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.mgr.Login(context.Background(), tt.email, tt.password)
			assert.Equal(t, autherrors.InvalidInput, autherrors.KindOf(err))
			_, err = f.mgr.Register(context.Background(), tt.email, tt.password)
			assert.Equal(t, autherrors.InvalidInput, autherrors.KindOf(err))
			assert.Zero(t, f.svc.registers)
		})
	}
}

func TestSubscribeSeesEveryChange(t *testing.T) {
	f := newFixture(t)
	f.svc.addUser("a@b.c", "pw", "T1")

	var seen []Status
	unsubscribe := f.mgr.Subscribe(func(s Session) {
		seen = append(seen, s.Status)
		// State must already reflect the change.
		assert.Equal(t, s, f.mgr.State())
	})

	require.NoError(t, f.mgr.Load(context.Background()))
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	f.mgr.Logout(context.Background())

	unsubscribe()
	_, err = f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusUnauthenticated, StatusAuthenticated, StatusUnauthenticated}, seen)
}

// countingAPI tracks how many logins run at once.
type countingAPI struct {
	inFlight, peak atomic.Int32
	calls          atomic.Int32
}

func (c *countingAPI) Register(context.Context, string, string) (*authapi.Response, error) {
	return &authapi.Response{StatusCode: http.StatusCreated}, nil
}

func (c *countingAPI) Login(_ context.Context, email, _ string) (*authapi.Response, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	c.calls.Add(1)
	time.Sleep(10 * time.Millisecond)
	return &authapi.Response{StatusCode: http.StatusOK, Data: map[string]any{"token": "T-" + email}}, nil
}

func TestConcurrentLoginsAreSerialized(t *testing.T) {
	api := &countingAPI{}
	store := keychain.NewMemory()
	mgr := New(api, store)

	var wg sync.WaitGroup
	for _, email := range []string{"a@x", "b@x", "c@x", "d@x", "e@x"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			_, err := mgr.Login(context.Background(), email, "pw")
			assert.NoError(t, err)
		}(email)
	}
	wg.Wait()

	assert.Equal(t, int32(5), api.calls.Load())
	assert.Equal(t, int32(1), api.peak.Load())

	// Memory and storage agree on whichever login ran last.
	v, ok, err := store.Read(context.Background(), keychain.KeySessionToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, mgr.State().Token)
}

// gatedAPI blocks Login until released.
type gatedAPI struct {
	countingAPI
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAPI) Login(ctx context.Context, email, password string) (*authapi.Response, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.countingAPI.Login(ctx, email, password)
}

func TestLoginGivesUpWhileQueued(t *testing.T) {
	api := &gatedAPI{entered: make(chan struct{}, 1), release: make(chan struct{})}
	mgr := New(api, keychain.NewMemory())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := mgr.Login(context.Background(), "first@x", "pw")
		assert.NoError(t, err)
	}()
	<-api.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := mgr.Login(ctx, "second@x", "pw")
	assert.Equal(t, autherrors.Cancelled, autherrors.KindOf(err))

	close(api.release)
	<-done
	assert.Equal(t, "T-first@x", mgr.State().Token)
}

func TestLogoutWaitsForInFlightLogin(t *testing.T) {
	api := &gatedAPI{entered: make(chan struct{}, 1), release: make(chan struct{})}
	mgr := New(api, keychain.NewMemory())

	loginDone := make(chan struct{})
	go func() {
		defer close(loginDone)
		_, _ = mgr.Login(context.Background(), "a@x", "pw")
	}()
	<-api.entered

	logoutDone := make(chan struct{})
	go func() {
		defer close(logoutDone)
		mgr.Logout(context.Background())
	}()

	close(api.release)
	<-loginDone
	<-logoutDone

	// Logout was queued behind the login, so it wins.
	assert.Equal(t, Session{Status: StatusUnauthenticated}, mgr.State())
}
