package transport

import (
	"errors"
	"time"
)

// Sentinel errors for transports.
var (
	// ErrReadTimeout indicates that no byte arrived within the read timeout.
	// It is the only recoverable transport error; anything else marks the
	// connection unusable until re-opened.
	ErrReadTimeout = errors.New("transport: read timeout")

	// ErrNotOpen indicates an operation on a transport that has no open port.
	ErrNotOpen = errors.New("transport: port not open")

	// ErrAlreadyOpen indicates an Open call on a transport that already
	// holds a port.
	ErrAlreadyOpen = errors.New("transport: port already open")
)

// Transport is the byte-stream contract the protocol engine runs on.
//
// Implementations hold exclusive ownership of the underlying port while
// open. They perform no retries and no interpretation of content.
type Transport interface {
	// Open acquires the named port. Fails if the port is absent, access is
	// denied (held by another process), or the transport is already open.
	Open(portName string) error

	// Close releases the port. Closing a transport that is not open is a no-op.
	Close() error

	// Write writes all bytes of p to the port.
	Write(p []byte) error

	// ReadByte reads a single byte, waiting at most timeout for it to
	// arrive. It returns ErrReadTimeout when the deadline passes with no
	// byte available.
	ReadByte(timeout time.Duration) (byte, error)

	// ResetInput discards any unread bytes buffered on the port.
	ResetInput() error
}
