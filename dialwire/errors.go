package dialwire

import "errors"

// Sentinel errors for the dial-hub wire protocol.
var (
	// ErrTimeout indicates that the frame read budget was exhausted before a
	// complete frame was accumulated.
	ErrTimeout = errors.New("dialwire: frame read timeout")

	// ErrMalformedFrame indicates that received bytes do not parse as a valid
	// frame. Callers treat it as equivalent to a timeout; it is logged
	// distinctly for diagnostics.
	ErrMalformedFrame = errors.New("dialwire: malformed frame")

	// ErrInvalidShape indicates an unknown data-shape tag.
	ErrInvalidShape = errors.New("dialwire: invalid data-shape tag")

	// ErrPayloadTooLarge indicates a payload exceeding the 16-bit length field.
	ErrPayloadTooLarge = errors.New("dialwire: payload exceeds maximum length")
)
