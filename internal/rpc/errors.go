package rpc

import (
	"errors"
	"fmt"
)

// Kind classifies RPC-level failures, i.e. everything that can go wrong
// after the transport delivered a response body.
type Kind int

const (
	// KindNotFound means the queried block, transaction, or code does not
	// exist. This is a normal, expected outcome for many queries.
	KindNotFound Kind = iota + 1
	// KindInvalidRequest means the node rejected the request parameters.
	KindInvalidRequest
	// KindNodeError is a node-internal error, carrying the node's code
	// and message.
	KindNodeError
	// KindMalformed means the response envelope violated JSON-RPC 2.0:
	// bad version, unexpected id, or result and error both present or
	// both absent.
	KindMalformed
	// KindDecodeError means a result payload carried malformed
	// hex-encoded quantities or data.
	KindDecodeError
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNodeError:
		return "node_error"
	case KindMalformed:
		return "malformed"
	case KindDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Error is a classified RPC failure. Code and Message are populated for
// node-reported errors; Method names the eth_* call that failed.
type Error struct {
	Kind    Kind
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("rpc %s: %s: node error %d: %s", e.Method, e.Kind, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("rpc %s: %s: %v", e.Method, e.Kind, e.Err)
	default:
		return fmt.Sprintf("rpc %s: %s", e.Method, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func isKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// IsNotFound reports whether err means the queried entity does not exist.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsInvalidRequest reports whether the node rejected the request parameters.
func IsInvalidRequest(err error) bool { return isKind(err, KindInvalidRequest) }

// IsDecodeError reports whether a result payload failed hex decoding.
func IsDecodeError(err error) bool { return isKind(err, KindDecodeError) }

// IsMalformed reports whether the response envelope was invalid.
func IsMalformed(err error) bool { return isKind(err, KindMalformed) }

// mapNodeError converts a node-reported JSON-RPC error into a typed Error.
// Standard codes: -32602 invalid params, -32601 method not found, -32600
// invalid request. Everything else is treated as a node-internal error.
func mapNodeError(method string, code int, message string) *Error {
	kind := KindNodeError
	switch code {
	case -32600, -32601, -32602:
		kind = KindInvalidRequest
	}
	return &Error{Kind: kind, Method: method, Code: code, Message: message}
}
