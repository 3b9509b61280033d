package routeros

import (
	"errors"
	"fmt"
)

// Domain-level errors expected in normal operation. Callers match them with
// errors.Is; the wrapping message carries the offending username/profile/input.
var (
	ErrDuplicateUsername = errors.New("username already exists on device")
	ErrNotFound          = errors.New("not found on device")
	ErrInvalidProfile    = errors.New("profile does not exist on device")
	ErrInvalidDataLimit  = errors.New("invalid data limit")
)

// ConnectionError reports a failure to reach or authenticate with the device:
// dial timeout, refusal, TLS failure, or rejected credentials. Retryable by
// the caller with a fresh client call; never retried internally.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed frame or an exchange the codec cannot
// interpret. It signals a codec/device mismatch (often a protocol-version
// misconfiguration) and is surfaced as-is, never swallowed.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TrapError is a device-reported command failure (!trap reply). The device
// client classifies trap messages into domain errors; unclassified traps
// surface as TrapError directly.
type TrapError struct {
	Command string
	Message string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("device rejected %s: %s", e.Command, e.Message)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
