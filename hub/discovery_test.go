package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dialhub/dialwire"
)

func TestDiscovery_TwoDevices(t *testing.T) {
	fw := twoDialFirmware()
	h := newTestHub(t, fw)

	require.NoError(t, h.DiscoverDevices(context.Background()))
	assert.Equal(t, StateReady, h.DiscoveryState())

	devices := h.ListDevices()
	require.Len(t, devices, 2)

	devA := devices[0]
	assert.Equal(t, "DIAL-A1B2", devA.Identifier)
	assert.Equal(t, uint8(0), devA.BusIndex)
	assert.Equal(t, "3.10", devA.FirmwareVersion)
	assert.Equal(t, "rev2", devA.HardwareVersion)
	assert.Equal(t, Easing{NeedleStep: 50, NeedlePeriod: 10, BacklightStep: 20, BacklightPeriod: 5}, devA.Easing)
	assert.False(t, devA.LastCommunication.IsZero())

	devB := devices[1]
	assert.Equal(t, "DIAL-C3D4", devB.Identifier)
	assert.Equal(t, uint8(1), devB.BusIndex)

	assert.Equal(t, uint64(1), h.Metrics().RescanCount.Load())
	assert.Equal(t, int64(2), h.Metrics().DeviceGauge.Load())
}

func TestDiscovery_RequestSequence(t *testing.T) {
	fw := twoDialFirmware()
	h := newTestHub(t, fw)

	require.NoError(t, h.DiscoverDevices(context.Background()))

	ops := fw.requestOps()
	require.GreaterOrEqual(t, len(ops), 2)
	assert.Equal(t, dialwire.OpRescanBus, ops[0])
	assert.Equal(t, dialwire.OpDeviceMap, ops[1])

	// Per device: identifier, firmware, hardware, easing.
	require.Len(t, ops, 2+2*4)
	assert.Equal(t, dialwire.OpIdentifier, ops[2])
	assert.Equal(t, dialwire.OpGetEasing, ops[5])
}

func TestDiscovery_FailureLeavesRegistryEmpty(t *testing.T) {
	fw := twoDialFirmware()
	fw.muteOps[dialwire.OpRescanBus] = true
	h := newTestHub(t, fw)

	err := h.DiscoverDevices(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Equal(t, StateFailed, h.DiscoveryState())
	assert.Empty(t, h.ListDevices())
}

func TestDiscovery_AbortKeepsPriorRegistry(t *testing.T) {
	fw := twoDialFirmware()
	h := newTestHub(t, fw)

	require.NoError(t, h.DiscoverDevices(context.Background()))
	require.Len(t, h.ListDevices(), 2)

	// Next pass loses the per-device metadata queries partway through.
	fw.mu.Lock()
	fw.failQueriesAt[1] = true
	fw.mu.Unlock()

	err := h.Rescan(context.Background())
	require.ErrorIs(t, err, ErrDiscoveryFailed)
	assert.Equal(t, StateFailed, h.DiscoveryState())

	// The prior snapshot survives in full.
	devices := h.ListDevices()
	require.Len(t, devices, 2)
	assert.Equal(t, "DIAL-C3D4", devices[1].Identifier)
}

func TestRescan_Idempotent(t *testing.T) {
	fw := twoDialFirmware()
	h := newTestHub(t, fw)

	require.NoError(t, h.DiscoverDevices(context.Background()))
	require.NoError(t, h.SetPosition(context.Background(), "DIAL-A1B2", 42))

	before, ok := h.GetDevice("DIAL-A1B2")
	require.True(t, ok)

	require.NoError(t, h.Rescan(context.Background()))

	after, ok := h.GetDevice("DIAL-A1B2")
	require.True(t, ok)

	// Live state survives a rescan; only busIndex may be rewritten.
	assert.Equal(t, before.Position, after.Position)
	assert.Equal(t, before.Backlight, after.Backlight)
	assert.Equal(t, before.Easing, after.Easing)
	assert.Equal(t, before.FirmwareVersion, after.FirmwareVersion)
	assert.Equal(t, uint8(0), after.BusIndex)
}

func TestRescan_Renumbers(t *testing.T) {
	fw := twoDialFirmware()
	h := newTestHub(t, fw)

	require.NoError(t, h.DiscoverDevices(context.Background()))
	require.NoError(t, h.SetPosition(context.Background(), "DIAL-C3D4", 77))

	// The bus renumbers: the dial at index 1 moves to index 0 and its
	// sibling disappears.
	fw.mu.Lock()
	moved := fw.dials[1]
	fw.dials = map[uint8]*fakeDial{0: moved}
	fw.mu.Unlock()

	require.NoError(t, h.Rescan(context.Background()))

	devices := h.ListDevices()
	require.Len(t, devices, 1)
	assert.Equal(t, "DIAL-C3D4", devices[0].Identifier)
	assert.Equal(t, uint8(0), devices[0].BusIndex)
	assert.Equal(t, uint8(77), devices[0].Position)

	_, ok := h.GetDevice("DIAL-A1B2")
	assert.False(t, ok)
}

func TestParseDeviceMap(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []uint8
		wantErr bool
	}{
		{name: "indices 0 and 1", payload: []byte{0x00, 0x00, 0x00, 0x03}, want: []uint8{0, 1}},
		{name: "single byte", payload: []byte{0x05}, want: []uint8{0, 2}},
		{name: "high index", payload: []byte{0x80, 0x00, 0x00, 0x00}, want: []uint8{31}},
		{name: "empty bus", payload: []byte{0x00}, want: []uint8{}},
		{name: "no payload", payload: nil, wantErr: true},
		{name: "oversized", payload: make([]byte, 5), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeviceMap(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscoveryState_String(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Scanning", StateScanning.String())
	assert.Equal(t, "MappingDevices", StateMappingDevices.String())
	assert.Equal(t, "QueryingEachDevice", StateQueryingEachDevice.String())
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Failed", StateFailed.String())
	assert.Equal(t, "Unknown", DiscoveryState(99).String())
}
