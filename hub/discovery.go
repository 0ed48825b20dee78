package hub

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/arloliu/go-dialhub/dialwire"
	"github.com/arloliu/go-dialhub/internal/pool"
	"github.com/arloliu/go-dialhub/logger"
)

// discoverer drives the discovery state machine:
//
//	Idle → Scanning → MappingDevices → QueryingEachDevice → Ready
//
// with Failed reachable from every state on an exchange error. A failed run
// aborts wholesale: the registry keeps its prior snapshot, never a partially
// populated one.
type discoverer struct {
	ex      *Exchanger
	reg     *Registry
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics

	state AtomicDiscoveryState
}

func newDiscoverer(ex *Exchanger, reg *Registry, cfg *Config, metrics *Metrics) *discoverer {
	return &discoverer{
		ex:      ex,
		reg:     reg,
		cfg:     cfg,
		logger:  cfg.GetLogger(),
		metrics: metrics,
	}
}

// run executes one full discovery pass and publishes the new registry
// snapshot on success.
func (d *discoverer) run(ctx context.Context) error {
	indices, err := d.scanAndMap(ctx)
	if err != nil {
		return d.fail(err)
	}

	d.state.Set(StateQueryingEachDevice)

	devices := make([]*Device, 0, len(indices))
	for _, busIndex := range indices {
		dev, err := d.queryDevice(ctx, busIndex)
		if err != nil {
			return d.fail(fmt.Errorf("querying bus index %d: %w", busIndex, err))
		}
		devices = append(devices, dev)
	}

	// Entries whose identifier is absent from the new map are dropped here.
	d.reg.publish(devices)
	d.state.Set(StateReady)
	d.metrics.incRescanCount()
	d.metrics.setDeviceGauge(len(devices))
	d.logger.Info("discovery complete", "devices", len(devices))

	return nil
}

func (d *discoverer) fail(err error) error {
	d.state.Set(StateFailed)
	d.logger.Error("discovery aborted, registry unchanged", "error", err)

	return fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
}

func (d *discoverer) scanAndMap(ctx context.Context) ([]uint8, error) {
	d.state.Set(StateScanning)

	if _, err := d.ex.Execute(ctx, dialwire.NewRescanCommand(), d.cfg.CommandTimeout()); err != nil {
		return nil, fmt.Errorf("rescan bus: %w", err)
	}

	// The firmware re-enumerates asynchronously after acknowledging; an
	// immediate map query can observe a half-built bus.
	if err := d.settle(ctx); err != nil {
		return nil, err
	}

	d.state.Set(StateMappingDevices)

	msg, err := d.ex.Execute(ctx, dialwire.NewDeviceMapCommand(), d.cfg.CommandTimeout())
	if err != nil {
		return nil, fmt.Errorf("device map: %w", err)
	}

	indices, err := parseDeviceMap(msg.Payload)
	if err != nil {
		return nil, err
	}

	return indices, nil
}

func (d *discoverer) settle(ctx context.Context) error {
	settle := d.cfg.RescanSettle()
	if settle <= 0 {
		return nil
	}

	timer := pool.GetTimer(settle)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseDeviceMap decodes the live-bus bitmask: big-endian bytes, bit 0 of
// the last byte is bus index 0.
func parseDeviceMap(payload []byte) ([]uint8, error) {
	if len(payload) == 0 || len(payload) > 4 {
		return nil, fmt.Errorf("dialhub: device map payload is %d bytes, want 1-4", len(payload))
	}

	var mask uint32
	for _, b := range payload {
		mask = mask<<8 | uint32(b)
	}

	indices := make([]uint8, 0, 8)
	for i := uint8(0); i < uint8(len(payload)*8); i++ {
		if mask&(1<<i) != 0 {
			indices = append(indices, i)
		}
	}

	return indices, nil
}

func (d *discoverer) queryDevice(ctx context.Context, busIndex uint8) (*Device, error) {
	identifier, err := d.queryString(ctx, dialwire.OpIdentifier, busIndex)
	if err != nil {
		return nil, err
	}

	// Surviving identifiers keep their live fields; only busIndex and the
	// freshly-queried metadata are rewritten.
	dev, ok := d.reg.Get(identifier)
	if !ok {
		dev = &Device{Identifier: identifier}
	}
	dev.BusIndex = busIndex

	if dev.FirmwareVersion, err = d.queryString(ctx, dialwire.OpFirmwareVersion, busIndex); err != nil {
		return nil, err
	}
	if dev.HardwareVersion, err = d.queryString(ctx, dialwire.OpHardwareVersion, busIndex); err != nil {
		return nil, err
	}
	if dev.Easing, err = d.queryEasing(ctx, busIndex); err != nil {
		return nil, err
	}

	dev.LastCommunication = time.Now()

	return dev, nil
}

func (d *discoverer) queryString(ctx context.Context, op byte, busIndex uint8) (string, error) {
	msg, err := d.query(ctx, op, busIndex)
	if err != nil {
		return "", err
	}

	return string(msg.Payload), nil
}

func (d *discoverer) queryEasing(ctx context.Context, busIndex uint8) (Easing, error) {
	msg, err := d.query(ctx, dialwire.OpGetEasing, busIndex)
	if err != nil {
		return Easing{}, err
	}

	if len(msg.Payload) != 16 {
		return Easing{}, fmt.Errorf("dialhub: easing payload is %d bytes, want 16", len(msg.Payload))
	}

	return Easing{
		NeedleStep:      binary.BigEndian.Uint32(msg.Payload[0:4]),
		NeedlePeriod:    binary.BigEndian.Uint32(msg.Payload[4:8]),
		BacklightStep:   binary.BigEndian.Uint32(msg.Payload[8:12]),
		BacklightPeriod: binary.BigEndian.Uint32(msg.Payload[12:16]),
	}, nil
}

func (d *discoverer) query(ctx context.Context, op byte, busIndex uint8) (*dialwire.Message, error) {
	cmd, err := dialwire.NewDeviceQueryCommand(op, busIndex)
	if err != nil {
		return nil, err
	}

	msg, err := d.ex.Execute(ctx, cmd, d.cfg.CommandTimeout())
	if err != nil {
		return nil, fmt.Errorf("op 0x%02X: %w", op, err)
	}

	return msg, nil
}
