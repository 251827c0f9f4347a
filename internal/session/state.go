// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

// Status is the tri-state authentication flag.
type Status int

const (
	// StatusUnknown means secure storage has not been consulted yet.
	StatusUnknown Status = iota
	// StatusAuthenticated means a token is held.
	StatusAuthenticated
	// StatusUnauthenticated means there is no session.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Session is the client's current belief about who it is logged in as.
// Status is StatusAuthenticated exactly when Token is non-empty.
type Session struct {
	Token  string
	Status Status
}

// IsAuthenticated reports the flag and whether it is known yet.
// Callers should treat known == false as "still loading".
func (s Session) IsAuthenticated() (authenticated, known bool) {
	return s.Status == StatusAuthenticated, s.Status != StatusUnknown
}

func authenticated(token string) Session {
	return Session{Token: token, Status: StatusAuthenticated}
}

func unauthenticated() Session {
	return Session{Status: StatusUnauthenticated}
}
