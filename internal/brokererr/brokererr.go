// Package brokererr classifies the actor's errors into the categories named
// by the broker contract, the same way lib.FromGRPC/IsCanceled/IsDeadline
// classify teleport's gRPC errors, retargeted to a plain HTTPS transport.
package brokererr

import (
	"context"
	"errors"
	"net"

	"github.com/gravitational/trace"
)

// Category is one of the eight error categories the actor distinguishes.
type Category string

const (
	// Connection covers transport failures: dial errors, TLS handshake
	// failures, and timeouts.
	Connection Category = "connection"
	// Broker covers a non-null `error` field in a response envelope, or an
	// envelope that otherwise doesn't parse.
	Broker Category = "broker"
	// Unmanaged is returned when the broker explicitly reports the machine
	// as unmanaged.
	Unmanaged Category = "unmanaged"
	// InvalidKey is returned when the broker rejects the bearer token.
	InvalidKey Category = "invalid_key"
	// Config covers local configuration parse/validation failures.
	Config Category = "config"
	// Exec covers failures of externally invoked commands.
	Exec Category = "exec"
	// Platform covers OS-call failures surfaced by internal/platform.
	Platform Category = "platform"
	// RequestStop is the cooperative shutdown signal used inside the
	// router; it is never sent over the wire.
	RequestStop Category = "request_stop"
)

type categoryKey struct{}

// categorized wraps an error with a Category, retrievable via CategoryOf.
type categorized struct {
	error
	category Category
}

// Wrap tags err with category, or returns nil if err is nil.
func Wrap(err error, category Category) error {
	if err == nil {
		return nil
	}
	return trace.Wrap(&categorized{error: err, category: category})
}

// Errorf builds a new categorized error.
func Errorf(category Category, format string, args ...interface{}) error {
	return trace.Wrap(&categorized{error: trace.Errorf(format, args...), category: category})
}

// CategoryOf returns the category attached to err by Wrap/Errorf, or ""
// if none was attached.
func CategoryOf(err error) Category {
	for err != nil {
		var c *categorized
		if errors.As(err, &c) {
			return c.category
		}
		unwrapped := trace.Unwrap(err)
		if unwrapped == err {
			break
		}
		err = unwrapped
	}
	return ""
}

// Is reports whether err carries the given category.
func Is(err error, category Category) bool {
	return CategoryOf(err) == category
}

// IsConnection classifies a raw transport error (network, TLS, timeout)
// without requiring it to have already been wrapped by this package.
func IsConnection(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, Connection) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return false
}

// FromHTTP classifies a broker round-trip failure: a transport-level err
// takes priority, otherwise httpStatus drives the category (401/403 →
// InvalidKey, everything else not-OK → Broker).
func FromHTTP(err error, httpStatus int) error {
	if err != nil {
		if IsConnection(err) {
			return Wrap(err, Connection)
		}
		return Wrap(err, Broker)
	}
	switch {
	case httpStatus == 401 || httpStatus == 403:
		return Errorf(InvalidKey, "broker rejected the bearer token (status %d)", httpStatus)
	case httpStatus >= 400:
		return Errorf(Broker, "broker returned status %d", httpStatus)
	}
	return nil
}
