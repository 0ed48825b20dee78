package hub

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dialhub/dialwire"
	"github.com/arloliu/go-dialhub/transport"
)

// fakeDial is one simulated device on the fake firmware's bus.
type fakeDial struct {
	identifier string
	firmware   string
	hardware   string
	easing     [4]uint32
}

// fakeFirmware simulates the hub firmware behind a MockTransport: it decodes
// each written request frame and queues the matching response.
type fakeFirmware struct {
	mu    sync.Mutex
	dials map[uint8]*fakeDial

	// failOps maps operation codes to a non-zero status reply.
	failOps map[byte]dialwire.Status

	// muteOps lists operation codes that get no reply at all.
	muteOps map[byte]bool

	// failQueriesAt mutes per-device queries for one bus index.
	failQueriesAt map[uint8]bool

	requests []byte // op codes in arrival order
}

func newFakeFirmware(dials map[uint8]*fakeDial) *fakeFirmware {
	return &fakeFirmware{
		dials:         dials,
		failOps:       make(map[byte]dialwire.Status),
		muteOps:       make(map[byte]bool),
		failQueriesAt: make(map[uint8]bool),
	}
}

func (f *fakeFirmware) transport() *transport.MockTransport {
	mt := transport.NewMockTransport()
	mt.Respond = f.respond

	return mt
}

func (f *fakeFirmware) requestOps() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, len(f.requests))
	copy(out, f.requests)

	return out
}

func (f *fakeFirmware) deviceMap() []byte {
	var mask uint32
	for busIndex := range f.dials {
		mask |= 1 << busIndex
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], mask)

	return buf[:]
}

func (f *fakeFirmware) respond(written []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(written) < 9 || written[0] != dialwire.RequestMarker {
		return nil
	}

	var header [4]byte
	if _, err := hex.Decode(header[:], written[1:9]); err != nil {
		return nil
	}
	op := header[0]

	payload := make([]byte, hex.DecodedLen(len(written[9:])))
	if _, err := hex.Decode(payload, written[9:]); err != nil {
		return nil
	}

	f.requests = append(f.requests, op)

	if f.muteOps[op] {
		return nil
	}
	if status, ok := f.failOps[op]; ok {
		var code [2]byte
		binary.BigEndian.PutUint16(code[:], uint16(status))

		return dialwire.EncodeResponse(op, dialwire.ShapeStatusCode, code[:])
	}

	switch op {
	case dialwire.OpRescanBus, dialwire.OpSetPosition, dialwire.OpSetBacklight, dialwire.OpSetEasing:
		return dialwire.EncodeResponse(op, dialwire.ShapeStatusCode, nil)

	case dialwire.OpDeviceMap:
		return dialwire.EncodeResponse(op, dialwire.ShapeMultipleValue, f.deviceMap())

	case dialwire.OpIdentifier, dialwire.OpFirmwareVersion, dialwire.OpHardwareVersion, dialwire.OpGetEasing:
		if len(payload) != 1 {
			return nil
		}

		busIndex := payload[0]
		if f.failQueriesAt[busIndex] {
			return nil
		}

		dial, ok := f.dials[busIndex]
		if !ok {
			return nil
		}

		switch op {
		case dialwire.OpIdentifier:
			return dialwire.EncodeResponse(op, dialwire.ShapeSingleValue, []byte(dial.identifier))
		case dialwire.OpFirmwareVersion:
			return dialwire.EncodeResponse(op, dialwire.ShapeSingleValue, []byte(dial.firmware))
		case dialwire.OpHardwareVersion:
			return dialwire.EncodeResponse(op, dialwire.ShapeSingleValue, []byte(dial.hardware))
		default:
			buf := make([]byte, 16)
			for i, v := range dial.easing {
				binary.BigEndian.PutUint32(buf[i*4:], v)
			}

			return dialwire.EncodeResponse(op, dialwire.ShapeSingleValue, buf)
		}
	}

	return nil
}

// twoDialFirmware is the common fixture: dials at bus indices 0 and 1.
func twoDialFirmware() *fakeFirmware {
	return newFakeFirmware(map[uint8]*fakeDial{
		0: {identifier: "DIAL-A1B2", firmware: "3.10", hardware: "rev2", easing: [4]uint32{50, 10, 20, 5}},
		1: {identifier: "DIAL-C3D4", firmware: "3.10", hardware: "rev2", easing: [4]uint32{80, 20, 30, 10}},
	})
}

// newTestHub returns a connected hub backed by the fake firmware. Timing is
// tightened so failure paths do not slow the suite down.
func newTestHub(t *testing.T, fw *fakeFirmware, opts ...Option) *Hub {
	t.Helper()

	base := []Option{
		WithTransport(fw.transport()),
		WithCommandTimeout(100 * time.Millisecond),
		WithRescanSettle(0),
	}

	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	h := New(cfg)
	require.NoError(t, h.Connect(context.Background(), "/dev/ttyUSB0"))
	t.Cleanup(func() { _ = h.Close() })

	return h
}
