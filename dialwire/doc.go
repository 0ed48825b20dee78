// Package dialwire implements the hex-ASCII wire protocol spoken by the
// analog-dial hub over its serial link.
//
// # Frame Layout
//
// A frame is a run of ASCII characters with no terminator:
//
//	request:  '>' CC DD LLLL [payload]
//	response: '<' CC DD LLLL [payload]
//
// where CC is the hex-encoded operation code, DD the hex-encoded data-shape
// tag, LLLL the hex-encoded payload byte count (big-endian), and the payload
// is 2×LLLL hex characters. The hub does not send a line terminator, so the
// decoder derives the total frame length from the LLLL field alone: once the
// 9 header characters have arrived, exactly 9 + 2×LLLL characters make up
// the frame. Bytes received before the start marker are discarded as noise
// from a prior aborted frame.
//
// # Data-Shape Tags
//
// The data-shape tag describes the semantic structure of the payload, not
// its size. The tag is fixed per operation code; see ShapeForOp. A response
// tagged StatusCode carries a 16-bit outcome value where zero means success.
//
// The package is a pure codec: it performs no I/O of its own. Frame reading
// is driven through a ByteReader callback supplied by the transaction layer,
// and all internal representations are raw bytes with hex conversion
// isolated to the encode/decode boundary.
package dialwire
