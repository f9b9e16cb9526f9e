// Package gqlerrors defines the wire-visible error taxonomy of the gateway.
//
// Every error that can reach a client carries one of the codes below in the
// graphql error extensions, so clients can distinguish re-auth conditions from
// permission problems from transient upstream failures.
package gqlerrors

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql/gqlerrors"
)

// Code identifies one class of client-visible failure.
type Code string

const (
	// CodeMalformedRequest covers unparseable queries, invalid cursors and
	// schema-invalid input. Never retried.
	CodeMalformedRequest Code = "MALFORMED_REQUEST"

	// CodeUnauthenticated means no verified identity was present where one is
	// required. Clients should trigger re-authentication.
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// CodeForbidden means an ownership or privilege check failed.
	CodeForbidden Code = "FORBIDDEN"

	// CodeNotFound covers missing entities and missing persisted query hashes.
	CodeNotFound Code = "NOT_FOUND"

	// CodeShapeRejected means the query exceeded the depth or complexity bound
	// and was rejected before any resolution began.
	CodeShapeRejected Code = "SHAPE_REJECTED"

	// CodeUpstreamUnavailable means the backing store could not be reached.
	// Surfaced per field; sibling fields still resolve.
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"

	// CodePersistedQueryNotFound tells the client to retry the request with
	// the full query body attached.
	CodePersistedQueryNotFound Code = "PERSISTED_QUERY_NOT_FOUND"
)

// Error is a client-visible error with a taxonomy code. It implements
// gqlerrors.ExtendedError so graphql-go surfaces the code in error extensions.
type Error struct {
	Code    Code
	Message string
	cause   error
}

var _ gqlerrors.ExtendedError = (*Error)(nil)

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": string(e.Code)}
}

// New builds an Error with the given code and message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that preserves the underlying cause for errors.Is/As
// while presenting only the message to the client.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf returns the taxonomy code carried by err, or an empty code when err
// is not part of the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Convenience constructors for the common cases.

func MalformedRequest(format string, args ...interface{}) *Error {
	return New(CodeMalformedRequest, format, args...)
}

func Unauthenticated() *Error {
	return New(CodeUnauthenticated, "unauthenticated")
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(CodeForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(CodeNotFound, format, args...)
}

func ShapeRejected(format string, args ...interface{}) *Error {
	return New(CodeShapeRejected, format, args...)
}

func UpstreamUnavailable(cause error) *Error {
	return Wrap(CodeUpstreamUnavailable, cause, "backing store unavailable")
}

func PersistedQueryNotFound() *Error {
	return New(CodePersistedQueryNotFound, "persisted query not found; retry with query body")
}
