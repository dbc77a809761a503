package core

import (
	"context"
	"sync"
	"time"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Work is a unit of work with its arguments already bound. Tasks capture
// a Work closure at creation time and invoke it on every execution.
type Work func(ctx context.Context) (any, error)

// Task is a named, executable unit of work. Its state is guarded by a
// mutex because task status is read over the HTTP and MCP surfaces while
// the scheduler loop mutates it.
type Task struct {
	Name        string
	Description string

	work Work

	mu          sync.Mutex
	status      TaskStatus
	result      any
	errText     string
	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

// NewTask creates a task in pending status. The name is not validated
// here; uniqueness is the Manager's concern.
func NewTask(name string, work Work, description string) *Task {
	return &Task{
		Name:        name,
		Description: description,
		work:        work,
		status:      TaskStatusPending,
		createdAt:   time.Now(),
	}
}

// Execute runs the captured work synchronously. Failures are recorded on
// the task and returned to the caller. Executing again re-runs the work
// and overwrites the previous result, error and timestamps; tasks are
// not memoized.
func (t *Task) Execute(ctx context.Context) (any, error) {
	started := time.Now()
	t.mu.Lock()
	t.status = TaskStatusRunning
	t.startedAt = &started
	t.result = nil
	t.errText = ""
	t.completedAt = nil
	t.mu.Unlock()

	// completedAt is set exactly once per Execute, success or failure.
	defer func() {
		ended := time.Now()
		t.mu.Lock()
		t.completedAt = &ended
		t.mu.Unlock()
	}()

	result, err := t.work(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.status = TaskStatusFailed
		t.errText = err.Error()
		return nil, err
	}
	t.status = TaskStatusCompleted
	t.result = result
	return result, nil
}

// Cancel transitions a pending task to cancelled and reports whether the
// transition happened. Cancelling a task in any other state does nothing;
// in particular a running task is not interrupted.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskStatusPending {
		return false
	}
	t.status = TaskStatusCancelled
	return true
}

// Status returns the current lifecycle state.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Result returns the value produced by the last successful execution,
// or nil.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Err returns the failure description of the last execution, or "".
func (t *Task) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errText
}

// CreatedAt returns the construction timestamp.
func (t *Task) CreatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdAt
}

// StartedAt returns when the last execution began, if any.
func (t *Task) StartedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt == nil {
		return time.Time{}, false
	}
	return *t.startedAt, true
}

// CompletedAt returns when the last execution ended, if any.
func (t *Task) CompletedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completedAt == nil {
		return time.Time{}, false
	}
	return *t.completedAt, true
}

// Duration returns how long the last execution took. The second return
// is false until an execution has both started and ended.
func (t *Task) Duration() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt == nil || t.completedAt == nil {
		return 0, false
	}
	return t.completedAt.Sub(*t.startedAt), true
}
