package ssc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Scheduler runs periodic tasks keyed by name, one goroutine per task.
// Each task is independently cancellable.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Scheduler struct {
	clock Clock

	mu    sync.Mutex
	tasks map[string]*scheduledTask
	wg    sync.WaitGroup

	logger Logger
}

type scheduledTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler driven by clock. A nil clock means RealClock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		clock:  clock,
		tasks:  make(map[string]*scheduledTask),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used to report task panics.
func (s *Scheduler) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Schedule runs fn every interval until the task is cancelled or ctx ends.
// The first run happens one interval after Schedule returns. An existing
// task with the same key is cancelled and replaced.
//
// The ticker is created before Schedule returns, so advancing a test
// clock immediately afterwards is observed by the task.
func (s *Scheduler) Schedule(ctx context.Context, key string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("ssc: schedule %q: interval must be positive, got %v", key, interval)
	}
	if fn == nil {
		return fmt.Errorf("ssc: schedule %q: nil task", key)
	}

	s.Cancel(key)

	taskCtx, cancel := context.WithCancel(ctx)
	task := &scheduledTask{cancel: cancel, done: make(chan struct{})}
	ticker := s.clock.Ticker(interval)

	s.mu.Lock()
	s.tasks[key] = task
	logger := s.logger
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(task.done)
		defer ticker.Stop()

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.Chan():
				runTask(taskCtx, key, fn, logger)
			}
		}
	}()

	return nil
}

func runTask(ctx context.Context, key string, fn func(ctx context.Context), logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled task panic", "task", key, "panic", r)
		}
	}()
	fn(ctx)
}

// Cancel stops the task registered under key and waits for it to exit.
// Returns false if no such task exists.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	task, ok := s.tasks[key]
	if ok {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	task.cancel()
	<-task.done
	return true
}

// Keys returns the keys of active tasks in sorted order.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.tasks))
	for k := range s.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stop cancels every task and waits for all of them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*scheduledTask)
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	s.wg.Wait()
}
