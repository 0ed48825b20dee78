package hub

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// snapshot is one complete view of the bus: identifier-keyed devices plus
// the busIndex projection. Discovery builds a fresh snapshot and publishes
// it atomically; a failed discovery never replaces the current one.
type snapshot struct {
	devices *xsync.MapOf[string, *Device]
	byBus   map[uint8]string

	// order lists identifiers by ascending bus index for stable listings.
	order []string
}

func newSnapshot(devices []*Device) *snapshot {
	snap := &snapshot{
		devices: xsync.NewMapOf[string, *Device](),
		byBus:   make(map[uint8]string, len(devices)),
	}

	sorted := make([]*Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BusIndex < sorted[j].BusIndex })

	for _, dev := range sorted {
		snap.devices.Store(dev.Identifier, dev)
		snap.byBus[dev.BusIndex] = dev.Identifier
		snap.order = append(snap.order, dev.Identifier)
	}

	return snap
}

// Registry holds the discovered device set as an atomically swapped
// snapshot. Readers always observe a complete snapshot; only the discovery
// state machine publishes new ones. Per-device live fields are updated by
// replacing the stored *Device, never by mutating it in place, so clones
// handed to readers stay consistent.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.current.Store(newSnapshot(nil))

	return reg
}

// Len returns the number of registered devices.
func (reg *Registry) Len() int {
	return len(reg.current.Load().order)
}

// Get returns a clone of the device with the given identifier.
func (reg *Registry) Get(identifier string) (*Device, bool) {
	dev, ok := reg.current.Load().devices.Load(identifier)
	if !ok {
		return nil, false
	}

	return dev.Clone(), true
}

// List returns clones of all registered devices, ordered by bus index.
func (reg *Registry) List() []*Device {
	snap := reg.current.Load()

	out := make([]*Device, 0, len(snap.order))
	for _, id := range snap.order {
		if dev, ok := snap.devices.Load(id); ok {
			out = append(out, dev.Clone())
		}
	}

	return out
}

// BusIndex resolves an identifier to its current bus index. The result is
// only valid until the next rescan; resolve immediately before each
// transaction.
func (reg *Registry) BusIndex(identifier string) (uint8, bool) {
	dev, ok := reg.current.Load().devices.Load(identifier)
	if !ok {
		return 0, false
	}

	return dev.BusIndex, true
}

// Identifiers returns the registered identifiers ordered by bus index.
func (reg *Registry) Identifiers() []string {
	snap := reg.current.Load()

	out := make([]string, len(snap.order))
	copy(out, snap.order)

	return out
}

// publish atomically replaces the whole registry with the given device set.
func (reg *Registry) publish(devices []*Device) {
	reg.current.Store(newSnapshot(devices))
}

// update applies mutate to a clone of the named device and stores the clone
// back, so concurrent readers never observe a half-applied mutation. Returns
// false when the identifier is not registered.
func (reg *Registry) update(identifier string, mutate func(*Device)) bool {
	snap := reg.current.Load()

	dev, ok := snap.devices.Load(identifier)
	if !ok {
		return false
	}

	next := dev.Clone()
	mutate(next)
	snap.devices.Store(identifier, next)

	return true
}
