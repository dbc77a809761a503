package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Executor runs a task on behalf of the scheduler. The seam lets the
// Manager wrap executions with history recording and failure
// notification without the scheduler knowing about either.
type Executor interface {
	Execute(ctx context.Context, task *Task) (any, error)
}

type directExecutor struct{}

func (directExecutor) Execute(ctx context.Context, task *Task) (any, error) {
	return task.Execute(ctx)
}

// Scheduler polls an ordered list of scheduled entries and executes the
// due ones. Execution is synchronous and single-threaded within a pass;
// a long-running task delays the rest of the pass until it returns.
//
// RunOnce and Schedule are safe to call from multiple goroutines; the
// entry list is guarded by a mutex.
type Scheduler struct {
	checkInterval time.Duration
	exec          Executor
	logger        *slog.Logger

	mu      sync.Mutex
	entries []*ScheduledTask

	running atomic.Bool
}

// NewScheduler constructs a scheduler polling every checkInterval. A nil
// exec runs tasks directly.
func NewScheduler(checkInterval time.Duration, exec Executor, logger *slog.Logger) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	if exec == nil {
		exec = directExecutor{}
	}
	return &Scheduler{
		checkInterval: checkInterval,
		exec:          exec,
		logger:        logger,
	}
}

// Schedule appends a new entry for the task and returns it. There is no
// deduplication: scheduling the same task twice produces two entries
// that will both fire.
func (s *Scheduler) Schedule(task *Task, opts ScheduleOptions) (*ScheduledTask, error) {
	entry, err := newScheduledTask(task, opts, time.Now())
	if err != nil {
		return nil, err
	}
	if entry.Repeat && entry.Every <= 0 && entry.cronSchedule == nil {
		s.logger.Warn("recurring schedule has no interval and will never re-arm", "task", task.Name)
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.logger.Info("scheduled task",
		"task", task.Name,
		"at", entry.At,
		"every", entry.Every,
		"repeat", entry.Repeat,
		"cron", entry.CronExpr)
	return entry, nil
}

// RunOnce performs a single poll pass: every entry present at the start
// of the pass is considered exactly once, due entries are executed, and
// non-repeating entries that ran are removed. A failing entry is logged
// and does not abort the rest of the pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	snapshot := make([]*ScheduledTask, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	var done []*ScheduledTask
	for _, entry := range snapshot {
		if !entry.ShouldRun(now) {
			continue
		}
		s.logger.Info("executing scheduled task", "task", entry.Task.Name)
		if _, err := s.exec.Execute(ctx, entry.Task); err != nil {
			s.logger.Error("scheduled task failed", "task", entry.Task.Name, "err", err)
		}
		// last_run is recorded for failures too; a failing recurring
		// task retries at its interval, not at every poll. A one-shot
		// gets exactly one execution, even a failed one.
		entry.markRun(now)
		if !entry.Repeat {
			done = append(done, entry)
		}
	}

	if len(done) > 0 {
		s.removeEntries(done)
	}
}

// removeEntries drops the given entries by identity. Entries appended
// while a pass was executing are untouched.
func (s *Scheduler) removeEntries(done []*ScheduledTask) {
	drop := make(map[*ScheduledTask]struct{}, len(done))
	for _, entry := range done {
		drop[entry] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if _, ok := drop[entry]; !ok {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
}

// Run polls continuously until Stop is called or ctx is cancelled. It
// blocks the calling goroutine for the scheduler's entire active
// lifetime; Stop takes effect at the next loop boundary and does not
// interrupt an in-flight pass.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler already running")
		return
	}
	s.logger.Info("scheduler started", "check_interval", s.checkInterval)
	for s.running.Load() {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.running.Store(false)
		case <-time.After(s.checkInterval):
		}
	}
	s.logger.Info("scheduler stopped")
}

// Stop requests the run loop to exit at its next boundary.
func (s *Scheduler) Stop() {
	s.running.Store(false)
}

// Running reports whether the continuous run loop is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Len returns the number of scheduled entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// PendingTasks returns the entries whose underlying task is still
// pending. This reflects task lifecycle status, not due-ness.
func (s *Scheduler) PendingTasks() []*ScheduledTask {
	s.mu.Lock()
	snapshot := make([]*ScheduledTask, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	var pending []*ScheduledTask
	for _, entry := range snapshot {
		if entry.Task.Status() == TaskStatusPending {
			pending = append(pending, entry)
		}
	}
	return pending
}

// ClearCompleted removes non-repeating entries whose task completed.
// Repeating entries and failed one-shots are retained; failures are not
// silently discarded.
func (s *Scheduler) ClearCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.Repeat || entry.Task.Status() != TaskStatusCompleted {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
}
