// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package authapi is the HTTP client for the remote authentication service.
// It sends credentials to the register and login endpoints and turns every
// failure, whether transport or server-side, into a normalized *errors.E.
package authapi

import (
	"net/http"
	"strings"
)

// Endpoint paths on the authentication service.
const (
	PathRegister = "/auth/register"
	PathLogin    = "/auth"
)

// Credentials is the request body for both endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response is a successful answer from the authentication service.
// The body is passed through untouched; Data is its JSON decoding when the body is an object.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Data       map[string]any
}

// Token returns the session token carried by a login response, if any.
func (r *Response) Token() string {
	if r == nil || r.Data == nil {
		return ""
	}
	if v, ok := r.Data["token"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
