/*

This file defines the stable, user-facing error kinds the service returns
across every handler. Internal failures (database, upstream RPC/GraphQL)
are surfaced to the client only as a fixed generic message for their
kind (see Wrap), never as the wrapped error text. The vote-intake and
address-claim orchestrators log the underlying error before wrapping;
the read handlers in internal/web do not log it.

*/

package apierr

import "net/http"

// Kind is one of the stable error kinds from the specification.
type Kind string

const (
	InvalidInput        Kind = "InvalidInput"
	AuthError           Kind = "AuthError"
	InvalidPool         Kind = "InvalidPool"
	InvalidBlock        Kind = "InvalidBlock"
	StaleBlock          Kind = "StaleBlock"
	NotAHolder          Kind = "NotAHolder"
	RateLimited         Kind = "RateLimited"
	CooldownActive      Kind = "CooldownActive"
	DatabaseError       Kind = "DatabaseError"
	UpstreamError       Kind = "UpstreamError"
	NotRegisteredMiner  Kind = "NotRegisteredMiner"
	VersionIncompatible Kind = "VersionIncompatible"
	InternalError       Kind = "InternalError"
)

// Error is the error type every orchestrator (VI, AC, readers) returns.
// Message is always safe to show to a client.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap logs nothing itself (a caller that wants the detail recorded logs
// it first) and produces a generic, non-leaking message for an internal
// failure of the given kind.
func Wrap(kind Kind) *Error {
	msg := "internal error"
	if kind == DatabaseError {
		msg = "a database error occurred"
	}
	if kind == UpstreamError {
		msg = "an upstream service is unavailable"
	}
	return &Error{Kind: kind, Message: msg}
}

// HTTPStatus maps a Kind to the HTTP status code the web layer should use.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput, InvalidPool, InvalidBlock:
		return http.StatusBadRequest
	case AuthError:
		return http.StatusUnauthorized
	case StaleBlock, NotAHolder, CooldownActive, NotRegisteredMiner, VersionIncompatible:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case DatabaseError, UpstreamError, InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, if it is one, else reports ok=false.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
