package transport

import (
	"errors"
	"fmt"
)

// Kind classifies transport failures.
type Kind int

const (
	// KindTimeout means a request or its retry budget ran out of time.
	KindTimeout Kind = iota + 1
	// KindConnectionFailed covers network-level failures: refused
	// connections, resets, DNS errors, and an open circuit breaker.
	KindConnectionFailed
	// KindProtocol covers non-retryable HTTP failures such as 4xx
	// statuses (other than 429) and unreadable response bodies.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified transport failure. Attempts records how many HTTP
// attempts were made before giving up; Status is the last HTTP status code
// seen, or zero if no response arrived.
type Error struct {
	Kind     Kind
	Status   int
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s (HTTP %d, %d attempts): %v", e.Kind, e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("transport %s (%d attempts): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func isKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool { return isKind(err, KindTimeout) }

// IsConnectionFailed reports whether err is a network-level failure.
func IsConnectionFailed(err error) bool { return isKind(err, KindConnectionFailed) }

// IsProtocol reports whether err is a non-retryable HTTP-level failure.
func IsProtocol(err error) bool { return isKind(err, KindProtocol) }
