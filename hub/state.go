package hub

import "sync/atomic"

// DiscoveryState tracks the discovery state machine.
type DiscoveryState uint32

const (
	StateIdle DiscoveryState = iota
	StateScanning
	StateMappingDevices
	StateQueryingEachDevice
	StateReady
	StateFailed
)

func (s DiscoveryState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateMappingDevices:
		return "MappingDevices"
	case StateQueryingEachDevice:
		return "QueryingEachDevice"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// AtomicDiscoveryState is a lock-free holder for the discovery state.
type AtomicDiscoveryState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicDiscoveryState) Get() DiscoveryState {
	return DiscoveryState(st.state.Load())
}

// Set sets the current state.
func (st *AtomicDiscoveryState) Set(state DiscoveryState) {
	st.state.Store(uint32(state))
}

func (st *AtomicDiscoveryState) String() string {
	return st.Get().String()
}

// IsReady reports whether the last discovery completed successfully.
func (st *AtomicDiscoveryState) IsReady() bool {
	return st.Get() == StateReady
}
