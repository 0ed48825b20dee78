package dialwire

// DataShape is the protocol's data-shape tag: it declares the semantic
// structure of a frame's payload, not its size.
//
// The tag for each operation is fixed by the hub firmware; the engine never
// chooses a tag per call. See ShapeForOp.
type DataShape byte

const (
	// ShapeNone tags a frame with no payload.
	ShapeNone DataShape = 0x01

	// ShapeSingleValue tags a payload consisting of one scalar parameter.
	// Used for queries and single-parameter reads.
	ShapeSingleValue DataShape = 0x02

	// ShapeMultipleValue tags a payload of several independent,
	// order-significant values of the same kind (e.g. the four
	// backlight channel intensities).
	ShapeMultipleValue DataShape = 0x03

	// ShapeKeyValuePair tags a (target, value) payload where the first
	// element selects which addressable sub-element the second applies to
	// (e.g. bus index + position percentage).
	ShapeKeyValuePair DataShape = 0x04

	// ShapeStatusCode tags a payload carrying a 16-bit outcome code.
	// Zero is success; any non-zero value is a distinct failure reason.
	ShapeStatusCode DataShape = 0x05
)

// IsValid reports whether s is a known data-shape tag.
func (s DataShape) IsValid() bool {
	return s >= ShapeNone && s <= ShapeStatusCode
}

// String returns the string representation of the data-shape tag.
func (s DataShape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeSingleValue:
		return "single-value"
	case ShapeMultipleValue:
		return "multiple-value"
	case ShapeKeyValuePair:
		return "key-value-pair"
	case ShapeStatusCode:
		return "status-code"
	default:
		return "unknown"
	}
}
