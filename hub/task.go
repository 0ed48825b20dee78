package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-dialhub/logger"
)

// TaskFunc is the body of a managed goroutine. It returns true to keep
// running or false to stop the goroutine.
type TaskFunc func() bool

// TaskManager owns the hub's background goroutines (the update flusher,
// polling loops layered on top by callers) and gives them a uniform
// lifecycle: panic recovery, cancellation through one context, and a Wait
// that only returns once every task has terminated.
type TaskManager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32

	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protects ctx and cancel
	taskMu  sync.RWMutex // protects task creation during Wait()
}

// NewTaskManager creates a TaskManager with ctx as the parent context.
func NewTaskManager(ctx context.Context, l logger.Logger) *TaskManager {
	mgr := &TaskManager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

func (mgr *TaskManager) getContext() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start launches a named goroutine that calls taskFunc in a loop until it
// returns false or the manager is stopped.
func (mgr *TaskManager) Start(name string, taskFunc TaskFunc) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		for {
			select {
			case <-mgr.getContext().Done():
				return
			default:
			}

			if !mgr.callWithRecover(name, taskFunc) {
				return
			}
		}
	})

	return starter.waitForStart()
}

// StartInterval launches a named goroutine that calls taskFunc every
// interval until it returns false or the manager is stopped. When runNow is
// true the first call happens immediately.
func (mgr *TaskManager) StartInterval(name string, taskFunc TaskFunc, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval)

	if interval <= 0 {
		return fmt.Errorf("dialhub: invalid interval %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()

		return fmt.Errorf("dialhub: interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		cleanup()

		return nil
	}

	starter, err := mgr.newTaskStarter(name)
	if err != nil {
		cleanup()

		return err
	}

	starter.startTask(func() {
		defer cleanup()

		for {
			select {
			case <-mgr.getContext().Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})

	if err := starter.waitForStart(); err != nil {
		cleanup()

		return err
	}

	return nil
}

// StopInterval stops the interval task with the given name.
func (mgr *TaskManager) StopInterval(name string) error {
	val, ok := mgr.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("dialhub: interval task %s not found", name)
	}

	if ticker, ok := val.(*time.Ticker); ok {
		ticker.Stop()
	}

	return nil
}

func (mgr *TaskManager) callWithRecover(name string, fn func() bool) bool {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	return fn()
}

// Stop signals all running goroutines to terminate.
func (mgr *TaskManager) Stop() {
	mgr.tickers.Range(func(key, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every managed goroutine has terminated, then resets the
// manager so tasks can be started again.
func (mgr *TaskManager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *TaskManager) TaskCount() int {
	return int(mgr.count.Load())
}

type taskStarter struct {
	mgr     *TaskManager
	name    string
	started chan error
}

func (mgr *TaskManager) newTaskStarter(name string) (*taskStarter, error) {
	select {
	case <-mgr.getContext().Done():
		return nil, fmt.Errorf("dialhub: task manager already stopped")
	default:
	}

	return &taskStarter{
		mgr:     mgr,
		name:    name,
		started: make(chan error, 1),
	}, nil
}

func (s *taskStarter) startTask(taskBody func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)

	go func() {
		defer s.mgr.wg.Done()

		s.mgr.count.Add(1)
		s.started <- nil

		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		taskBody()
	}()
}

func (s *taskStarter) waitForStart() error {
	select {
	case err := <-s.started:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("dialhub: task %s failed to start", s.name)
	}
}
