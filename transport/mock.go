package transport

import (
	"sync"
	"time"
)

// MockTransport is an in-memory Transport for tests and hub simulators.
//
// Every Write is recorded in order. A Respond callback, when set, maps each
// written frame to response bytes which become readable through ReadByte.
// Reads drain the pending response buffer; an empty buffer waits up to the
// read timeout for concurrent writers before reporting ErrReadTimeout.
type MockTransport struct {
	mu      sync.Mutex
	opened  bool
	name    string
	pending []byte
	writes  [][]byte

	// Respond maps a written frame to the bytes the fake hub sends back.
	// A nil return queues nothing.
	Respond func(written []byte) []byte

	// Error injection points.
	OpenErr  error
	WriteErr error
	ReadErr  error
}

var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Open(portName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return m.OpenErr
	}
	if m.opened {
		return ErrAlreadyOpen
	}
	m.opened = true
	m.name = portName

	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opened = false
	m.name = ""

	return nil
}

func (m *MockTransport) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return ErrNotOpen
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}

	frame := make([]byte, len(p))
	copy(frame, p)
	m.writes = append(m.writes, frame)

	if m.Respond != nil {
		if resp := m.Respond(frame); resp != nil {
			m.pending = append(m.pending, resp...)
		}
	}

	return nil
}

func (m *MockTransport) ReadByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)

	for {
		m.mu.Lock()
		if !m.opened {
			m.mu.Unlock()

			return 0, ErrNotOpen
		}
		if m.ReadErr != nil {
			err := m.ReadErr
			m.mu.Unlock()

			return 0, err
		}
		if len(m.pending) > 0 {
			b := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()

			return b, nil
		}
		m.mu.Unlock()

		if !time.Now().Before(deadline) {
			return 0, ErrReadTimeout
		}

		time.Sleep(time.Millisecond)
	}
}

func (m *MockTransport) ResetInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return ErrNotOpen
	}
	m.pending = nil

	return nil
}

// QueueRead appends bytes that subsequent ReadByte calls will serve.
func (m *MockTransport) QueueRead(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, p...)
}

// Writes returns the recorded Write calls in order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.writes))
	copy(out, m.writes)

	return out
}

// Opened reports whether the transport currently holds its fake port.
func (m *MockTransport) Opened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.opened
}
