package hub

import (
	"context"
	"sync"

	"github.com/arloliu/go-dialhub/internal/queue"
	"github.com/arloliu/go-dialhub/logger"
)

// deviceWriter is the slice of the Hub API the updater needs.
type deviceWriter interface {
	SetPosition(ctx context.Context, identifier string, percent uint8) error
	SetBacklight(ctx context.Context, identifier string, channels [4]uint8) error
}

type updateKind uint8

const (
	updatePosition updateKind = iota + 1
	updateBacklight
)

type updateKey struct {
	identifier string
	kind       updateKind
}

type pendingUpdate struct {
	position  uint8
	backlight [4]uint8
}

// Updater batches position and backlight writes behind a periodic flush.
//
// GUI sliders and polling loops can queue updates far faster than the bus
// can absorb them, so pending writes coalesce per device and kind: only the
// latest queued value reaches the wire. Ordering between distinct devices
// follows first-queue order.
type Updater struct {
	mu      sync.Mutex
	order   queue.Queue[updateKey]
	latest  map[updateKey]pendingUpdate
	running bool

	writer  deviceWriter
	mgr     *TaskManager
	cfg     *Config
	logger  logger.Logger
	metrics *Metrics
}

const updaterTaskName = "updateFlusher"

func newUpdater(writer deviceWriter, mgr *TaskManager, cfg *Config, metrics *Metrics) *Updater {
	return &Updater{
		order:   queue.NewSliceQueue[updateKey](16),
		latest:  make(map[updateKey]pendingUpdate),
		writer:  writer,
		mgr:     mgr,
		cfg:     cfg,
		logger:  cfg.GetLogger(),
		metrics: metrics,
	}
}

// start launches the periodic flush task. A no-op when the task is already
// running, so reconnecting does not double-start it.
func (u *Updater) start() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return nil
	}

	if err := u.mgr.StartInterval(updaterTaskName, u.flush, u.cfg.FlushInterval(), false); err != nil {
		return err
	}
	u.running = true

	return nil
}

// stop halts the flush task; already-queued updates are dropped.
func (u *Updater) stop() {
	_ = u.mgr.StopInterval(updaterTaskName)

	u.mu.Lock()
	u.running = false
	u.order.Reset()
	u.latest = make(map[updateKey]pendingUpdate)
	u.mu.Unlock()
}

// QueuePosition records a pending needle write for the device, replacing any
// not-yet-flushed position update for it.
func (u *Updater) QueuePosition(identifier string, percent uint8) {
	u.queue(updateKey{identifier: identifier, kind: updatePosition}, pendingUpdate{position: percent})
}

// QueueBacklight records a pending backlight write for the device, replacing
// any not-yet-flushed backlight update for it.
func (u *Updater) QueueBacklight(identifier string, channels [4]uint8) {
	u.queue(updateKey{identifier: identifier, kind: updateBacklight}, pendingUpdate{backlight: channels})
}

// PendingCount returns the number of distinct updates waiting to flush.
func (u *Updater) PendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.latest)
}

func (u *Updater) queue(key updateKey, upd pendingUpdate) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, exists := u.latest[key]; exists {
		u.metrics.incCoalesceCount()
	} else {
		u.order.Enqueue(key)
	}
	u.latest[key] = upd
}

// flush drains everything queued at entry. A failed write is dropped, not
// retried; the device keeps its last known good state and the next queued
// update supersedes it anyway.
func (u *Updater) flush() bool {
	for {
		key, upd, ok := u.next()
		if !ok {
			return true
		}

		ctx, cancel := context.WithTimeout(context.Background(), u.cfg.CommandTimeout())
		err := u.write(ctx, key, upd)
		cancel()

		if err != nil {
			u.logger.Warn("queued update dropped", "device", key.identifier, "error", err)

			continue
		}
		u.metrics.incFlushCount()
	}
}

func (u *Updater) next() (updateKey, pendingUpdate, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	key, ok := u.order.Dequeue()
	if !ok {
		return updateKey{}, pendingUpdate{}, false
	}

	upd := u.latest[key]
	delete(u.latest, key)

	return key, upd, true
}

func (u *Updater) write(ctx context.Context, key updateKey, upd pendingUpdate) error {
	switch key.kind {
	case updateBacklight:
		return u.writer.SetBacklight(ctx, key.identifier, upd.backlight)
	default:
		return u.writer.SetPosition(ctx, key.identifier, upd.position)
	}
}
