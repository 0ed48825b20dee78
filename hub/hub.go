package hub

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/go-dialhub/dialwire"
	"github.com/arloliu/go-dialhub/logger"
	"github.com/arloliu/go-dialhub/transport"
)

// Hub is the collaborator-facing engine for one dial hub: it locates the
// hub's serial port, runs device discovery, and exposes the per-device
// operations. All wire traffic funnels through a single Exchanger, so Hub
// methods are safe to call from any number of goroutines.
type Hub struct {
	cfg     *Config
	logger  logger.Logger
	metrics Metrics

	registry *Registry
	taskMgr  *TaskManager
	updater  *Updater

	// locate is indirected for tests.
	locate func(ctx context.Context) (*LocateResult, error)

	mu      sync.Mutex
	tr      transport.Transport
	ex      *Exchanger
	disc    *discoverer
	located *LocateResult
	closed  bool
}

// New creates a Hub from the given configuration. The hub starts
// disconnected; call LocateAndConnect or Connect before issuing commands.
func New(cfg *Config) *Hub {
	h := &Hub{
		cfg:      cfg,
		logger:   cfg.GetLogger(),
		registry: NewRegistry(),
		taskMgr:  NewTaskManager(context.Background(), cfg.GetLogger()),
	}
	h.updater = newUpdater(h, h.taskMgr, cfg, &h.metrics)
	h.locate = func(ctx context.Context) (*LocateResult, error) {
		return NewLocator(cfg).Locate(ctx)
	}

	return h
}

// LocateAndConnect probes candidate serial ports for the hub and connects
// to the chosen one. When no port answers the probe the first enumerated
// candidate is used; Located reports which path was taken.
func (h *Hub) LocateAndConnect(ctx context.Context) error {
	result, err := h.locate(ctx)
	if err != nil {
		return err
	}

	if err := h.Connect(ctx, result.PortName); err != nil {
		return err
	}

	h.mu.Lock()
	h.located = result
	h.mu.Unlock()

	return nil
}

// Connect opens the named port and prepares the exchanger. It does not run
// discovery; call DiscoverDevices next.
func (h *Hub) Connect(_ context.Context, portName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.ex != nil && h.ex.Usable() {
		return ErrAlreadyOpen
	}

	// A failed transport still holds OS-exclusive ownership of its port;
	// release it before reopening, or the reconnect is denied access.
	if h.tr != nil {
		_ = h.tr.Close()
		h.tr = nil
	}

	tr := h.cfg.newTransport()
	if err := tr.Open(portName); err != nil {
		return &TransportError{Err: err}
	}

	h.tr = tr
	h.ex = NewExchanger(tr, h.logger, &h.metrics)
	h.disc = newDiscoverer(h.ex, h.registry, h.cfg, &h.metrics)

	// Only LocateAndConnect records a LocateResult; a pinned-port Connect
	// never ran the probe, so there is nothing to report.
	h.located = nil

	if err := h.updater.start(); err != nil {
		h.logger.Warn("update flusher not started", "error", err)
	}

	h.logger.Info("connected", "port", portName)

	return nil
}

// Located returns how the current connection's port was chosen. It is nil
// when disconnected or when the port was pinned via Connect without probing.
func (h *Hub) Located() *LocateResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.located
}

// Connected reports whether the hub has a usable connection.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ex != nil && h.ex.Usable()
}

// DiscoverDevices runs the full discovery sequence and atomically publishes
// the new device registry. On failure the prior registry is left intact.
func (h *Hub) DiscoverDevices(ctx context.Context) error {
	disc, err := h.discoverer()
	if err != nil {
		return err
	}

	return disc.run(ctx)
}

// Rescan re-enumerates the bus. Identical to DiscoverDevices: surviving
// identifiers keep their live state and get fresh bus indices.
func (h *Hub) Rescan(ctx context.Context) error {
	return h.DiscoverDevices(ctx)
}

// DiscoveryState returns the discovery state machine's current state.
func (h *Hub) DiscoveryState() DiscoveryState {
	h.mu.Lock()
	disc := h.disc
	h.mu.Unlock()

	if disc == nil {
		return StateIdle
	}

	return disc.state.Get()
}

// ListDevices returns clones of all registered devices ordered by bus index.
func (h *Hub) ListDevices() []*Device {
	return h.registry.List()
}

// GetDevice returns a clone of the device with the given identifier.
func (h *Hub) GetDevice(identifier string) (*Device, bool) {
	return h.registry.Get(identifier)
}

// SetPosition moves a device's needle to the given 0-100 percentage.
// On failure the device's recorded state is left unchanged.
func (h *Hub) SetPosition(ctx context.Context, identifier string, percent uint8) error {
	busIndex, ex, err := h.resolve(identifier)
	if err != nil {
		return err
	}

	cmd, err := dialwire.NewSetPositionCommand(busIndex, percent)
	if err != nil {
		return err
	}

	if _, err := ex.Execute(ctx, cmd, h.cfg.CommandTimeout()); err != nil {
		return err
	}

	h.registry.update(identifier, func(d *Device) {
		d.Position = percent
		d.LastCommunication = time.Now()
	})

	return nil
}

// SetBacklight sets a device's four backlight channel intensities, 0-100
// each. On failure the device's recorded state is left unchanged.
func (h *Hub) SetBacklight(ctx context.Context, identifier string, channels [4]uint8) error {
	busIndex, ex, err := h.resolve(identifier)
	if err != nil {
		return err
	}

	cmd, err := dialwire.NewSetBacklightCommand(busIndex, channels)
	if err != nil {
		return err
	}

	if _, err := ex.Execute(ctx, cmd, h.cfg.CommandTimeout()); err != nil {
		return err
	}

	h.registry.update(identifier, func(d *Device) {
		d.Backlight = channels
		d.LastCommunication = time.Now()
	})

	return nil
}

// SetEasing sets a device's transition smoothing configuration.
func (h *Hub) SetEasing(ctx context.Context, identifier string, easing Easing) error {
	busIndex, ex, err := h.resolve(identifier)
	if err != nil {
		return err
	}

	cmd := dialwire.NewSetEasingCommand(busIndex,
		easing.NeedleStep, easing.NeedlePeriod,
		easing.BacklightStep, easing.BacklightPeriod)

	if _, err := ex.Execute(ctx, cmd, h.cfg.CommandTimeout()); err != nil {
		return err
	}

	h.registry.update(identifier, func(d *Device) {
		d.Easing = easing
		d.LastCommunication = time.Now()
	})

	return nil
}

// SendRaw executes an arbitrary command and returns the decoded response.
// Escape hatch for operations not otherwise wrapped, such as
// auxiliary-display chunked writes.
func (h *Hub) SendRaw(ctx context.Context, cmd *dialwire.Command) (*dialwire.Message, error) {
	ex, err := h.exchanger()
	if err != nil {
		return nil, err
	}

	return ex.Execute(ctx, cmd, h.cfg.CommandTimeout())
}

// Updater returns the background update flusher for queueing coalesced
// position and backlight writes.
func (h *Hub) Updater() *Updater {
	return h.updater
}

// Metrics returns the hub's connection metrics.
func (h *Hub) Metrics() *Metrics {
	return &h.metrics
}

// Close stops background tasks and releases the port. The hub cannot be
// reused after Close.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()

		return nil
	}
	h.closed = true
	tr := h.tr
	h.tr = nil
	h.ex = nil
	h.disc = nil
	h.located = nil
	h.mu.Unlock()

	h.updater.stop()
	h.taskMgr.Stop()
	h.taskMgr.Wait()

	if tr != nil {
		if err := tr.Close(); err != nil {
			return err
		}
	}

	h.logger.Info("hub closed")

	return nil
}

// resolve maps an identifier to its current bus index. Resolution happens
// immediately before each transaction because bus indices do not survive a
// rescan.
func (h *Hub) resolve(identifier string) (uint8, *Exchanger, error) {
	ex, err := h.exchanger()
	if err != nil {
		return 0, nil, err
	}

	busIndex, ok := h.registry.BusIndex(identifier)
	if !ok {
		return 0, nil, ErrUnknownDevice
	}

	return busIndex, ex, nil
}

func (h *Hub) discoverer() (*discoverer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.disc == nil || h.ex == nil || !h.ex.Usable() {
		return nil, ErrNotConnected
	}

	return h.disc, nil
}

func (h *Hub) exchanger() (*Exchanger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.ex == nil || !h.ex.Usable() {
		return nil, ErrNotConnected
	}

	return h.ex, nil
}
