package dialwire

import "fmt"

// Status is a 16-bit outcome code carried by a StatusCode-tagged response.
// Zero is success; any non-zero value is a distinct failure reason.
type Status uint16

// Known status values reported by the hub firmware.
//
// Unknown non-zero values still decode: they are simply failures without a
// dedicated name.
const (
	StatusOK              Status = 0x0000
	StatusFailure         Status = 0x0001
	StatusBusy            Status = 0x0002
	StatusFirmwareTimeout Status = 0x0003
	StatusDeviceOffline   Status = 0x0004
	StatusBusError        Status = 0x0005
)

// OK reports whether the status indicates success.
func (s Status) OK() bool { return s == StatusOK }

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailure:
		return "failure"
	case StatusBusy:
		return "busy"
	case StatusFirmwareTimeout:
		return "firmware-timeout"
	case StatusDeviceOffline:
		return "device-offline"
	case StatusBusError:
		return "bus-error"
	default:
		return fmt.Sprintf("failure(0x%04X)", uint16(s))
	}
}

// Message is a decoded response frame: the echoed operation code, the
// data-shape tag, the declared payload length, and the raw payload bytes.
//
// When the tag denotes a status reply, Status holds the decoded outcome.
type Message struct {
	Op      byte
	Shape   DataShape
	Length  int // declared payload byte count
	Payload []byte
	Status  Status // meaningful only when Shape is ShapeStatusCode
}

// IsStatus reports whether the message is a status reply.
func (m *Message) IsStatus() bool {
	return m.Shape == ShapeStatusCode
}

// Succeeded reports whether the message is a status reply with a success
// outcome. Non-status replies (data responses) report true: receiving the
// data is the success.
func (m *Message) Succeeded() bool {
	if !m.IsStatus() {
		return true
	}

	return m.Status.OK()
}
