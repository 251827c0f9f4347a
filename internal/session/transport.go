// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"net/http"
	"time"
)

// CredentialSource supplies the Authorization header value for outbound requests.
// *Manager implements it.
type CredentialSource interface {
	Credential() string
}

// Transport is an http.RoundTripper that attaches the current credential to
// every request. The credential is read per request, so a login or logout takes
// effect for the very next request. Requests that already carry an
// Authorization header are sent as they are.
type Transport struct {
	Source CredentialSource
	// Base is the underlying transport; nil means http.DefaultTransport.
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	cred := t.Source.Credential()
	if cred == "" || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", cred)
	return base.RoundTrip(r)
}

// Client returns an HTTP client whose requests carry the manager's credential.
// Share one client between every component that talks to the service.
func (m *Manager) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Source: m},
	}
}

// Authorize sets the Authorization header on req from the current session,
// or removes it when there is no session.
func (m *Manager) Authorize(req *http.Request) {
	if cred := m.Credential(); cred != "" {
		req.Header.Set("Authorization", cred)
		return
	}
	req.Header.Del("Authorization")
}
