// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure that leaves the session core is an *E carrying a machine-readable
// Kind and a message suitable for showing to the user as-is.
//
// The JSON form of an *E is the normalized shape consumed by presentation code:
//
//	{"error": true, "message": "invalid credentials"}
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Transport indicates the authentication service could not be reached.
	Transport Kind = "transport"
	// Rejected indicates the authentication service answered with a non-success status
	// or a response the client cannot use.
	Rejected Kind = "rejected"
	// Storage indicates a secure storage read, write or delete failed.
	Storage Kind = "storage"
	// InvalidInput indicates the caller passed values the core refuses to send.
	InvalidInput Kind = "invalid_input"
	// Cancelled indicates the caller's context ended before the operation could run.
	Cancelled Kind = "cancelled"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	// Status is the HTTP status for Rejected errors, zero otherwise.
	Status int
	Err    error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

// MarshalJSON renders the normalized {"error": true, "message": ...} shape.
func (e *E) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}{Error: true, Message: e.Message})
}

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Rejection builds a Rejected error for an HTTP status.
func Rejection(status int, msg string) *E {
	return &E{Kind: Rejected, Message: msg, Status: status}
}

// KindOf returns the Kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the user-facing message for err.
// Errors that are not *E fall back to their Error() text.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *E
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
