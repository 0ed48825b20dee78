package hub

import (
	"time"
)

// Easing holds the firmware-side transition smoothing configuration:
// step/period pairs for the needle and the backlight.
type Easing struct {
	NeedleStep      uint32
	NeedlePeriod    uint32
	BacklightStep   uint32
	BacklightPeriod uint32
}

// Device is one addressable dial on the hub's internal bus.
//
// Identifier is the stable firmware-assigned key that survives rescans;
// BusIndex is only meaningful until the next rescan. All external references
// use Identifier, with BusIndex resolved immediately before each transaction.
type Device struct {
	// Identifier is the stable, globally unique string assigned by the hub
	// firmware.
	Identifier string

	// BusIndex is the device's current position in the hub's live device
	// map. Rewritten on every rescan.
	BusIndex uint8

	// Position is the last known needle deflection, 0-100 percent.
	Position uint8

	// Backlight holds four channel intensities, 0-100 each: three color
	// channels plus one auxiliary channel.
	Backlight [4]uint8

	// FirmwareVersion and HardwareVersion are opaque version strings
	// retrieved once at discovery.
	FirmwareVersion string
	HardwareVersion string

	// Easing is the transition smoothing configuration.
	Easing Easing

	// LastCommunication is the time of the most recent successful exchange
	// with this device.
	LastCommunication time.Time
}

// Clone returns a copy of the device. Registry readers always receive
// clones so that callers cannot race the registry's own updates.
func (d *Device) Clone() *Device {
	c := *d

	return &c
}
