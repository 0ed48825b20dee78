package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the hub's fixed line speed: 115200 baud, 8 data bits,
// no parity, 1 stop bit, no software flow control.
const DefaultBaudRate = 115200

// listPorts is indirected for tests.
var listPorts = serial.GetPortsList

// ListPorts enumerates the candidate serial ports on the host.
func ListPorts() ([]string, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate ports: %w", err)
	}

	return ports, nil
}

// SerialTransport implements Transport over a host serial port.
type SerialTransport struct {
	mu       sync.RWMutex
	port     serial.Port
	portName string
	baudRate int
}

var _ Transport = (*SerialTransport)(nil)

// NewSerial creates a serial Transport with the given baud rate.
// A baudRate of 0 selects DefaultBaudRate.
func NewSerial(baudRate int) *SerialTransport {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	return &SerialTransport{baudRate: baudRate}
}

// PortName returns the name of the currently open port, or "" when closed.
func (t *SerialTransport) PortName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.portName
}

// Open acquires the named port with the hub's fixed serial parameters and
// asserts the DTR and RTS handshake lines for adapter compatibility.
func (t *SerialTransport) Open(portName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, t.portName)
	}

	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", portName, err)
	}

	// Some USB-serial adapters deliver nothing until the modem lines are
	// asserted; others reject modem-line control outright, so failures
	// here are not fatal.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	t.port = port
	t.portName = portName

	return nil
}

// Close releases the port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}

	err := t.port.Close()
	t.port = nil
	t.portName = ""

	if err != nil {
		return fmt.Errorf("transport: close: %w", err)
	}

	return nil
}

// Write writes all bytes of p to the port.
func (t *SerialTransport) Write(p []byte) error {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()

	if port == nil {
		return ErrNotOpen
	}

	for written := 0; written < len(p); {
		n, err := port.Write(p[written:])
		written += n

		if err != nil {
			return fmt.Errorf("transport: write after %d of %d bytes: %w", written, len(p), err)
		}
	}

	return nil
}

// ReadByte reads a single byte with the given timeout.
//
// go.bug.st/serial reports a timeout as a zero-byte read with a nil error,
// which is translated to ErrReadTimeout here.
func (t *SerialTransport) ReadByte(timeout time.Duration) (byte, error) {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()

	if port == nil {
		return 0, ErrNotOpen
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("transport: set read timeout: %w", err)
	}

	var buf [1]byte
	n, err := port.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("transport: read: %w", err)
	}
	if n == 0 {
		return 0, ErrReadTimeout
	}

	return buf[0], nil
}

// ResetInput discards any unread bytes buffered on the port.
func (t *SerialTransport) ResetInput() error {
	t.mu.RLock()
	port := t.port
	t.mu.RUnlock()

	if port == nil {
		return ErrNotOpen
	}

	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("transport: reset input: %w", err)
	}

	return nil
}
