// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session owns the client's authentication state.
//
// A Manager is constructed once at startup and handed to every consumer that
// needs to know whether the user is logged in. It talks to the authentication
// service, mirrors the session token into secure storage, and exposes the bearer
// credential explicitly: outbound requests pick it up through Transport rather
// than through a process-wide default header.
//
// Typical use:
//
//	mgr := session.New(authapi.New(baseURL), store, session.WithLogger(log))
//	mgr.Start(ctx)
//	<-mgr.Ready() // closes even if ctx ends first
//	client := mgr.Client(10 * time.Second)
//
// Operations that change the session (startup load, Login, Logout) run one at
// a time; later callers wait their turn.
package session
