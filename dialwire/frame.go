package dialwire

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// Frame markers. A request starts with '>', a response with '<'.
const (
	RequestMarker  byte = '>'
	ResponseMarker byte = '<'
)

// headerChars is the number of characters before the payload:
// marker(1) + op(2) + shape(2) + length(4).
const headerChars = 9

// MaxPayloadSize is the largest payload representable in the 16-bit
// length field.
const MaxPayloadSize = 0xFFFF

const hexDigits = "0123456789ABCDEF"

func appendHexByte(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0F])
}

func parseHexByte(src []byte) (byte, error) {
	var out [1]byte
	if _, err := hex.Decode(out[:], src); err != nil {
		return 0, err
	}

	return out[0], nil
}

func parseHexUint16(src []byte) (uint16, error) {
	var out [2]byte
	if _, err := hex.Decode(out[:], src); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(out[:]), nil
}

// Encode serializes the command to its on-wire form:
//
//	'>' CC DD LLLL [payload hex]
//
// Hex characters are emitted in upper case.
func (c *Command) Encode() []byte {
	buf := make([]byte, 0, headerChars+2*len(c.Payload))
	buf = append(buf, RequestMarker)
	buf = appendHexByte(buf, c.Op)
	buf = appendHexByte(buf, byte(c.Shape))

	length := uint16(len(c.Payload)) //nolint:gosec // bounded by MaxPayloadSize at construction
	buf = appendHexByte(buf, byte(length>>8))
	buf = appendHexByte(buf, byte(length))

	for _, b := range c.Payload {
		buf = appendHexByte(buf, b)
	}

	return buf
}

// EncodeResponse builds a response frame ('<'-led) for the given operation,
// shape and payload. It is primarily useful for hub simulators and tests.
func EncodeResponse(op byte, shape DataShape, payload []byte) []byte {
	buf := make([]byte, 0, headerChars+2*len(payload))
	buf = append(buf, ResponseMarker)
	buf = appendHexByte(buf, op)
	buf = appendHexByte(buf, byte(shape))

	length := uint16(len(payload)) //nolint:gosec // callers stay within MaxPayloadSize
	buf = appendHexByte(buf, byte(length>>8))
	buf = appendHexByte(buf, byte(length))

	for _, b := range payload {
		buf = appendHexByte(buf, b)
	}

	return buf
}

// ByteReader reads one byte from the underlying transport, waiting at most
// timeout for it to arrive.
type ByteReader func(timeout time.Duration) (byte, error)

// ReadFrame accumulates one complete response frame using the length-aware
// read loop:
//
//  1. Read bytes one at a time, discarding anything before the '<' start
//     marker (noise from a prior aborted frame).
//  2. Once 9 characters have accumulated, parse the length field and compute
//     the total expected character count as 9 + 2×length.
//  3. Keep reading until that many characters have accumulated, then return
//     the whole frame.
//
// The loop never waits for a line terminator; the hub is not guaranteed to
// send one. The whole accumulation is bounded by timeout: a frame whose
// header over-declares its length times out instead of hanging.
func ReadFrame(ctx context.Context, read ByteReader, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	frame := make([]byte, 0, headerChars)
	total := -1 // unknown until the header is complete

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if total < 0 {
				return nil, fmt.Errorf("%w: %d chars, header incomplete after %v", ErrTimeout, len(frame), timeout)
			}

			return nil, fmt.Errorf("%w: %d of %d chars after %v", ErrTimeout, len(frame), total, timeout)
		}

		b, err := read(remaining)
		if err != nil {
			return nil, fmt.Errorf("dialwire: reading frame at char %d: %w", len(frame), err)
		}

		if len(frame) == 0 {
			if b != ResponseMarker {
				continue // noise before the start marker
			}
			frame = append(frame, b)

			continue
		}

		frame = append(frame, b)

		if len(frame) == headerChars {
			length, lenErr := parseHexUint16(frame[5:9])
			if lenErr != nil {
				return nil, fmt.Errorf("%w: length field %q is not hex", ErrMalformedFrame, frame[5:9])
			}
			total = headerChars + 2*int(length)
		}

		if total != -1 && len(frame) == total {
			return frame, nil
		}
	}
}

// Decode parses a complete response frame into a Message.
//
// When the shape tag is StatusCode, the status is decoded from the payload:
// an empty payload means success, a two-byte payload is the big-endian
// outcome value. Any other status payload length is malformed.
func Decode(frame []byte) (*Message, error) {
	if len(frame) < headerChars {
		return nil, fmt.Errorf("%w: %d chars, want at least %d", ErrMalformedFrame, len(frame), headerChars)
	}
	if frame[0] != ResponseMarker {
		return nil, fmt.Errorf("%w: start marker 0x%02X, want '<'", ErrMalformedFrame, frame[0])
	}

	op, err := parseHexByte(frame[1:3])
	if err != nil {
		return nil, fmt.Errorf("%w: operation field %q is not hex", ErrMalformedFrame, frame[1:3])
	}

	shapeByte, err := parseHexByte(frame[3:5])
	if err != nil {
		return nil, fmt.Errorf("%w: shape field %q is not hex", ErrMalformedFrame, frame[3:5])
	}

	shape := DataShape(shapeByte)
	if !shape.IsValid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidShape, shapeByte)
	}

	length, err := parseHexUint16(frame[5:9])
	if err != nil {
		return nil, fmt.Errorf("%w: length field %q is not hex", ErrMalformedFrame, frame[5:9])
	}

	expected := headerChars + 2*int(length)
	if len(frame) != expected {
		return nil, fmt.Errorf("%w: %d chars, header declares %d", ErrMalformedFrame, len(frame), expected)
	}

	payload := make([]byte, length)
	if _, err := hex.Decode(payload, frame[headerChars:]); err != nil {
		return nil, fmt.Errorf("%w: payload is not hex: %v", ErrMalformedFrame, err)
	}

	msg := &Message{
		Op:      op,
		Shape:   shape,
		Length:  int(length),
		Payload: payload,
	}

	if shape == ShapeStatusCode {
		switch len(payload) {
		case 0:
			msg.Status = StatusOK
		case 2:
			msg.Status = Status(binary.BigEndian.Uint16(payload))
		default:
			return nil, fmt.Errorf("%w: status payload of %d bytes", ErrMalformedFrame, len(payload))
		}
	}

	return msg, nil
}
