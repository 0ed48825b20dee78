package hub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-dialhub/logger"
)

func TestTaskManager_StartAndStop(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())

	var runs atomic.Int32
	require.NoError(t, mgr.Start("counter", func() bool {
		runs.Add(1)
		time.Sleep(time.Millisecond)

		return true
	}))

	assert.Eventually(t, func() bool { return runs.Load() > 3 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestTaskManager_TaskStopsItself(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())

	done := make(chan struct{})
	require.NoError(t, mgr.Start("oneshot", func() bool {
		close(done)

		return false
	}))

	<-done
	assert.Eventually(t, func() bool { return mgr.TaskCount() == 0 }, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()
}

func TestTaskManager_Interval(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())

	var ticks atomic.Int32
	require.NoError(t, mgr.StartInterval("ticker", func() bool {
		ticks.Add(1)

		return true
	}, 5*time.Millisecond, false))

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, mgr.StopInterval("ticker"))
	assert.Error(t, mgr.StopInterval("ticker"))

	mgr.Stop()
	mgr.Wait()
}

func TestTaskManager_DuplicateInterval(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())
	defer func() {
		mgr.Stop()
		mgr.Wait()
	}()

	noop := func() bool { return true }
	require.NoError(t, mgr.StartInterval("dup", noop, time.Second, false))
	assert.Error(t, mgr.StartInterval("dup", noop, time.Second, false))
}

func TestTaskManager_RecoversPanic(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())

	var calls atomic.Int32
	require.NoError(t, mgr.StartInterval("panicky", func() bool {
		calls.Add(1)
		panic("boom")
	}, time.Millisecond, false))

	// The panic is recovered instead of crashing the process; the task
	// terminates and its ticker is cleaned up.
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return mgr.TaskCount() == 0 }, time.Second, time.Millisecond)
	assert.Error(t, mgr.StopInterval("panicky"))

	mgr.Stop()
	mgr.Wait()
}

func TestTaskManager_StartAfterStop(t *testing.T) {
	mgr := NewTaskManager(context.Background(), logger.GetLogger())

	mgr.Stop()
	assert.Error(t, mgr.Start("late", func() bool { return false }))

	// Wait resets the manager for reuse.
	mgr.Wait()
	require.NoError(t, mgr.Start("again", func() bool { return false }))

	mgr.Stop()
	mgr.Wait()
}
