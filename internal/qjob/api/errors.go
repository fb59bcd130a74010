package api

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled reports a caller-initiated abort. It is kept distinct from
// TimeoutError so that a cancelled wait is never mistaken for an exhausted
// deadline.
var ErrCancelled = errors.New("operation cancelled by caller")

// ConnectError means a control-plane or stream connection could not be
// established: malformed URL, unreachable host, or rejected credentials.
type ConnectError struct {
	URL string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// APIError is a non-2xx control-plane response. Code and Message are taken
// from the error body and both appear in the error text.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (http %d): %s: %s", e.StatusCode, e.Code, e.Message)
}

// ProtocolError means the stream peer sent data that does not conform to
// the expected schema, or closed the channel before a terminal status.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError means the deadline elapsed while awaiting a status. The
// streaming layer never retries on its own after a timeout.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

// TransferError is a failed storage PUT or GET. Transfers are never retried
// automatically because locator idempotency across retries is not
// guaranteed.
type TransferError struct {
	Direction string
	URL       string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("storage %s to %s failed: %v", e.Direction, e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// FallbackEligible reports whether a stream failure should degrade to REST
// polling. Only connection and protocol failures qualify; a timeout means
// the budget is already spent.
func FallbackEligible(err error) bool {
	var ce *ConnectError
	var pe *ProtocolError
	return errors.As(err, &ce) || errors.As(err, &pe)
}
