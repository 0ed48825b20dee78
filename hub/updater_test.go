package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dialhub/logger"
)

// recordingWriter captures flushed updates without a real bus.
type recordingWriter struct {
	mu         sync.Mutex
	positions  []string
	lastValue  map[string]uint8
	backlights map[string][4]uint8
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		lastValue:  make(map[string]uint8),
		backlights: make(map[string][4]uint8),
	}
}

func (w *recordingWriter) SetPosition(_ context.Context, identifier string, percent uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.positions = append(w.positions, identifier)
	w.lastValue[identifier] = percent

	return nil
}

func (w *recordingWriter) SetBacklight(_ context.Context, identifier string, channels [4]uint8) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.backlights[identifier] = channels

	return nil
}

func newTestUpdater(t *testing.T) (*Updater, *recordingWriter) {
	t.Helper()

	cfg, err := NewConfig(WithFlushInterval(10 * time.Millisecond))
	require.NoError(t, err)

	writer := newRecordingWriter()
	mgr := NewTaskManager(context.Background(), logger.GetLogger())
	t.Cleanup(func() {
		mgr.Stop()
		mgr.Wait()
	})

	return newUpdater(writer, mgr, cfg, &Metrics{}), writer
}

func TestUpdater_CoalescesPerDevice(t *testing.T) {
	u, writer := newTestUpdater(t)

	// Queue faster than the flusher runs: only the latest value per device
	// may reach the wire.
	for percent := uint8(0); percent <= 100; percent += 10 {
		u.QueuePosition("DIAL-A", percent)
	}
	u.QueuePosition("DIAL-B", 55)

	assert.Equal(t, 2, u.PendingCount())

	require.True(t, u.flush())

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Equal(t, []string{"DIAL-A", "DIAL-B"}, writer.positions)
	assert.Equal(t, uint8(100), writer.lastValue["DIAL-A"])
	assert.Equal(t, uint8(55), writer.lastValue["DIAL-B"])
	assert.Equal(t, 0, u.PendingCount())
}

func TestUpdater_PositionAndBacklightAreIndependent(t *testing.T) {
	u, writer := newTestUpdater(t)

	u.QueuePosition("DIAL-A", 40)
	u.QueueBacklight("DIAL-A", [4]uint8{5, 6, 7, 8})

	assert.Equal(t, 2, u.PendingCount())
	require.True(t, u.flush())

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.Equal(t, uint8(40), writer.lastValue["DIAL-A"])
	assert.Equal(t, [4]uint8{5, 6, 7, 8}, writer.backlights["DIAL-A"])
}

func TestUpdater_BackgroundFlush(t *testing.T) {
	u, writer := newTestUpdater(t)
	require.NoError(t, u.start())

	u.QueuePosition("DIAL-A", 25)

	assert.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()

		return writer.lastValue["DIAL-A"] == 25
	}, time.Second, 5*time.Millisecond)

	u.stop()
}

func TestUpdater_StartIdempotent(t *testing.T) {
	u, _ := newTestUpdater(t)

	require.NoError(t, u.start())

	// A second start (reconnect path) must not error or double the task.
	require.NoError(t, u.start())
	assert.Equal(t, 1, u.mgr.TaskCount())

	u.stop()
}

func TestUpdater_StopDropsPending(t *testing.T) {
	u, _ := newTestUpdater(t)

	u.QueuePosition("DIAL-A", 25)
	u.stop()

	assert.Equal(t, 0, u.PendingCount())
}

func TestUpdater_CoalesceMetric(t *testing.T) {
	u, _ := newTestUpdater(t)

	u.QueuePosition("DIAL-A", 10)
	u.QueuePosition("DIAL-A", 20)
	u.QueuePosition("DIAL-A", 30)

	assert.Equal(t, uint64(2), u.metrics.CoalesceCount.Load())
}
