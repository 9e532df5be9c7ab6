package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies orchestration-level failures. Transport and RPC errors
// pass through wrapped, reachable via errors.As.
type Kind int

const (
	// KindPartialFailure means one or more sub-calls of a composite
	// operation failed. The composite result is discarded entirely;
	// partial data is never returned.
	KindPartialFailure Kind = iota + 1
	// KindInvalidArgument means the caller's request was rejected before
	// any RPC was issued.
	KindInvalidArgument
	// KindCancelled means the operation's context ended first.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindPartialFailure:
		return "partial_failure"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a classified service failure enriched with operation context.
// FailedBlocks lists the block numbers that could not be fetched during a
// range operation; Detail carries per-sub-call diagnostics for composite
// operations.
type Error struct {
	Kind         Kind
	Op           string
	FailedBlocks []uint64
	Detail       string
	Err          error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	if len(e.FailedBlocks) > 0 {
		fmt.Fprintf(&b, " (failed blocks: %s)", joinBlocks(e.FailedBlocks))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func isKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// IsInvalidArgument reports whether err is a rejected request.
func IsInvalidArgument(err error) bool { return isKind(err, KindInvalidArgument) }

// IsCancelled reports whether err is a cancelled operation.
func IsCancelled(err error) bool { return isKind(err, KindCancelled) }

// IsPartialFailure reports whether err is a failed composite operation.
func IsPartialFailure(err error) bool { return isKind(err, KindPartialFailure) }

// wrap enriches err with the operation name, mapping context expiry to
// KindCancelled. Typed transport/rpc errors stay reachable via errors.As.
func wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return &Error{Kind: KindCancelled, Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalidArg(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

func joinBlocks(nums []uint64) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
