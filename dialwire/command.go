package dialwire

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/go-dialhub/internal/util"
)

// Operation codes understood by the hub firmware.
const (
	// OpRescanBus re-enumerates live devices on the hub's internal bus.
	// Harmless to issue speculatively; used as the port-probe diagnostic.
	OpRescanBus byte = 0x01

	// OpDeviceMap returns the bitmask of currently-live bus indices.
	OpDeviceMap byte = 0x02

	// OpSetPosition moves a device's needle to a 0-100 percentage.
	OpSetPosition byte = 0x03

	// OpSetBacklight sets a device's four backlight channel intensities.
	OpSetBacklight byte = 0x04

	// OpIdentifier returns a device's stable firmware-assigned identifier.
	OpIdentifier byte = 0x05

	// OpFirmwareVersion returns a device's firmware version string.
	OpFirmwareVersion byte = 0x06

	// OpHardwareVersion returns a device's hardware version string.
	OpHardwareVersion byte = 0x07

	// OpGetEasing returns a device's four 32-bit easing values.
	OpGetEasing byte = 0x08

	// OpSetEasing sets a device's four 32-bit easing values.
	OpSetEasing byte = 0x09
)

// opShapes is the fixed operation-to-shape mapping for request frames.
//
// The mapping is a firmware contract: the hub rejects (or worse, silently
// misinterprets) frames carrying the wrong tag, so it must never be chosen
// per call. Verified against hub firmware responses; in particular the
// set-style commands use the pair/multi tags, not single-value.
var opShapes = map[byte]DataShape{
	OpRescanBus:       ShapeNone,
	OpDeviceMap:       ShapeNone,
	OpSetPosition:     ShapeKeyValuePair,
	OpSetBacklight:    ShapeMultipleValue,
	OpIdentifier:      ShapeSingleValue,
	OpFirmwareVersion: ShapeSingleValue,
	OpHardwareVersion: ShapeSingleValue,
	OpGetEasing:       ShapeSingleValue,
	OpSetEasing:       ShapeMultipleValue,
}

// ShapeForOp returns the fixed request data-shape tag for the given
// operation code. The second return value is false for unknown operations.
func ShapeForOp(op byte) (DataShape, bool) {
	shape, ok := opShapes[op]

	return shape, ok
}

// MaxPercent is the full-scale needle deflection and backlight intensity.
const MaxPercent = 100

// Command is an outbound request: a one-byte operation code, a one-byte
// data-shape tag, and a payload whose bytes are already in their final
// on-wire order.
type Command struct {
	Op      byte
	Shape   DataShape
	Payload []byte
}

// NewCommand creates a Command with an explicit shape tag and payload.
//
// Most callers should prefer the operation-specific constructors, which
// apply the fixed per-operation tag. NewCommand exists for the raw-command
// escape hatch (e.g. auxiliary-display chunked writes).
func NewCommand(op byte, shape DataShape, payload []byte) (*Command, error) {
	if !shape.IsValid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidShape, byte(shape))
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	return &Command{Op: op, Shape: shape, Payload: util.CloneSlice(payload, 0)}, nil
}

// NewRescanCommand creates the "rescan bus" command.
func NewRescanCommand() *Command {
	return &Command{Op: OpRescanBus, Shape: ShapeNone}
}

// NewDeviceMapCommand creates the "get device map" command.
func NewDeviceMapCommand() *Command {
	return &Command{Op: OpDeviceMap, Shape: ShapeNone}
}

// NewSetPositionCommand creates a needle position command for the device at
// busIndex. percent must be in [0, 100].
func NewSetPositionCommand(busIndex uint8, percent uint8) (*Command, error) {
	if percent > MaxPercent {
		return nil, fmt.Errorf("dialwire: position %d out of range [0, %d]", percent, MaxPercent)
	}

	return &Command{
		Op:      OpSetPosition,
		Shape:   ShapeKeyValuePair,
		Payload: []byte{busIndex, percent},
	}, nil
}

// NewSetBacklightCommand creates a backlight command for the device at
// busIndex. Each of the four channel intensities must be in [0, 100].
func NewSetBacklightCommand(busIndex uint8, channels [4]uint8) (*Command, error) {
	for i, ch := range channels {
		if ch > MaxPercent {
			return nil, fmt.Errorf("dialwire: backlight channel %d value %d out of range [0, %d]", i, ch, MaxPercent)
		}
	}

	return &Command{
		Op:      OpSetBacklight,
		Shape:   ShapeMultipleValue,
		Payload: []byte{busIndex, channels[0], channels[1], channels[2], channels[3]},
	}, nil
}

// NewDeviceQueryCommand creates a per-device query (identifier, firmware
// version, hardware version or easing read) for the device at busIndex.
func NewDeviceQueryCommand(op byte, busIndex uint8) (*Command, error) {
	shape, ok := opShapes[op]
	if !ok || shape != ShapeSingleValue {
		return nil, fmt.Errorf("dialwire: operation 0x%02X is not a per-device query", op)
	}

	return &Command{Op: op, Shape: shape, Payload: []byte{busIndex}}, nil
}

// NewSetEasingCommand creates an easing configuration command for the device
// at busIndex. The four values are encoded as consecutive 32-bit big-endian
// words after the bus index.
func NewSetEasingCommand(busIndex uint8, needleStep, needlePeriod, backlightStep, backlightPeriod uint32) *Command {
	payload := make([]byte, 1+4*4)
	payload[0] = busIndex
	binary.BigEndian.PutUint32(payload[1:5], needleStep)
	binary.BigEndian.PutUint32(payload[5:9], needlePeriod)
	binary.BigEndian.PutUint32(payload[9:13], backlightStep)
	binary.BigEndian.PutUint32(payload[13:17], backlightPeriod)

	return &Command{Op: OpSetEasing, Shape: ShapeMultipleValue, Payload: payload}
}
