package hub

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-dialhub/dialwire"
)

var (
	ErrNotConnected    = errors.New("dialhub: not connected")
	ErrAlreadyOpen     = errors.New("dialhub: connection already open")
	ErrUnknownDevice   = errors.New("dialhub: unknown device identifier")
	ErrNoPortsFound    = errors.New("dialhub: no candidate serial ports found")
	ErrDiscoveryFailed = errors.New("dialhub: device discovery failed")
	ErrClosed          = errors.New("dialhub: hub closed")
)

// TimeoutError reports that no complete response frame arrived within the
// per-call budget. Recoverable: the caller decides whether to retry.
type TimeoutError struct {
	Op      byte
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dialhub: op 0x%02X timed out after %v", e.Op, e.Elapsed)
}

// Is reports dialwire.ErrTimeout equivalence so callers can match the
// sentinel without unwrapping the struct.
func (e *TimeoutError) Is(target error) bool {
	return target == dialwire.ErrTimeout
}

// TransportError reports a port-level failure. Fatal to the current
// connection: the exchanger refuses further traffic until reopened.
type TransportError struct {
	Op  byte
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("dialhub: transport failure during op 0x%02X: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a well-formed status reply with a non-zero code.
// Operation-specific and never retried here.
type StatusError struct {
	Op     byte
	Status dialwire.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dialhub: op 0x%02X rejected: %s", e.Op, e.Status)
}
