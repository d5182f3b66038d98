// Package rpcerr is the closed error-code taxonomy shared by every RPC
// boundary (gateway-to-game, gateway-to-event, and the client-facing Error
// frame). It wraps google.golang.org/grpc/codes + status so the vocabulary
// matches what a future gRPC wire swap would use, even though the concrete
// transport here is HTTP/JSON.
package rpcerr

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Stable string codes surfaced to clients; internal codes never leak past
// the gateway (see Redacted).
const (
	CodeAuthDenied      = "auth_denied"
	CodeRateLimited     = "rate_limited"
	CodeBackpressure    = "backpressure"
	CodeNotSubscribed   = "not_subscribed"
	CodeForbidden       = "forbidden"
	CodeEngineRejected  = "engine_rejected"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeInvalidArgument = "invalid_argument"
	CodeUnavailable     = "service_unavailable"
	CodeInvariant       = "engine_invariant_violated"
)

// Error is the value every RPC boundary returns instead of a bare error.
type Error struct {
	Code    codes.Code
	Stable  string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Stable, e.Message) }

// GRPCStatus lets *Error satisfy status.FromError, so callers that only
// know about grpc/status can still recover the code.
func (e *Error) GRPCStatus() *status.Status { return status.New(e.Code, e.Message) }

func New(code codes.Code, stable, format string, args ...any) *Error {
	return &Error{Code: code, Stable: stable, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(codes.NotFound, CodeNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(codes.AlreadyExists, CodeConflict, format, args...)
}

func InvalidArgument(format string, args ...any) *Error {
	return New(codes.InvalidArgument, CodeInvalidArgument, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(codes.PermissionDenied, CodeForbidden, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return New(codes.Unavailable, CodeUnavailable, format, args...)
}

func EngineRejected(reason string) *Error {
	return New(codes.FailedPrecondition, CodeEngineRejected, "rejected: %s", reason)
}

// Redacted maps any error into the only thing a client is allowed to see:
// Validation, Authorization, and a generic service_unavailable for
// everything else. Internal codes (invariant violations, transient infra
// detail) never leak to the wire.
func Redacted(err error) (code string, message string) {
	rerr, ok := err.(*Error)
	if !ok {
		return CodeUnavailable, "service unavailable"
	}
	switch rerr.Stable {
	case CodeAuthDenied, CodeRateLimited, CodeBackpressure, CodeNotSubscribed,
		CodeForbidden, CodeEngineRejected, CodeNotFound, CodeConflict, CodeInvalidArgument:
		return rerr.Stable, rerr.Message
	default:
		return CodeUnavailable, "service unavailable"
	}
}
