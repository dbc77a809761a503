package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task name is not registered.
var ErrTaskNotFound = errors.New("task not found")

// ManagerOptions configure a Manager. The zero value is usable: a one
// minute check interval, no history journal, no notifier.
type ManagerOptions struct {
	CheckInterval time.Duration
	History       History
	Notifier      Notifier
}

// Manager is the facade over the task registry and the scheduler. Task
// names are unique within a Manager; re-creating a task under an
// existing name overwrites the prior entry.
type Manager struct {
	logger    *slog.Logger
	scheduler *Scheduler
	history   History
	notifier  Notifier

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

// NewManager constructs a Manager owning one scheduler configured with
// the given check interval.
func NewManager(logger *slog.Logger, opts ManagerOptions) *Manager {
	m := &Manager{
		logger:   logger,
		history:  opts.History,
		notifier: opts.Notifier,
		tasks:    make(map[string]*Task),
	}
	m.scheduler = NewScheduler(opts.CheckInterval, managerExecutor{m}, logger)
	return m
}

// CreateTask builds and registers a task. An existing task under the
// same name is overwritten; a scheduled entry still holding the old
// instance keeps running it, so the overwrite is logged.
func (m *Manager) CreateTask(name string, work Work, description string) *Task {
	task := NewTask(name, work, description)

	m.mu.Lock()
	if _, exists := m.tasks[name]; exists {
		m.logger.Warn("overwriting existing task", "task", name)
	} else {
		m.order = append(m.order, name)
	}
	m.tasks[name] = task
	m.mu.Unlock()

	m.logger.Info("created task", "task", name)
	return task
}

// CreateCommandTask registers a task that runs a shell command.
func (m *Manager) CreateCommandTask(name, command string, timeout time.Duration, workingDir, description string) *Task {
	return m.CreateTask(name, CommandWork(command, timeout, workingDir), description)
}

// ExecuteTask runs the named task immediately and returns its result.
// Execution failures surface to the caller; the run is journaled either
// way.
func (m *Manager) ExecuteTask(ctx context.Context, name string) (any, error) {
	task, err := m.GetTask(name)
	if err != nil {
		return nil, err
	}
	return m.runTask(ctx, task, RunTriggerManual)
}

// ScheduleTask hands the named task to the scheduler.
func (m *Manager) ScheduleTask(name string, opts ScheduleOptions) (*ScheduledTask, error) {
	task, err := m.GetTask(name)
	if err != nil {
		return nil, err
	}
	return m.scheduler.Schedule(task, opts)
}

// CancelTask cancels the named task if it is still pending and reports
// whether the cancellation took effect.
func (m *Manager) CancelTask(name string) (bool, error) {
	task, err := m.GetTask(name)
	if err != nil {
		return false, err
	}
	cancelled := task.Cancel()
	if cancelled {
		m.logger.Info("cancelled task", "task", name)
	}
	return cancelled, nil
}

// GetTask looks up a task by name.
func (m *Manager) GetTask(name string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return task, nil
}

// GetTaskStatus returns the lifecycle state of the named task.
func (m *Manager) GetTaskStatus(name string) (TaskStatus, error) {
	task, err := m.GetTask(name)
	if err != nil {
		return "", err
	}
	return task.Status(), nil
}

// ListTasks returns all registered task names in registration order.
func (m *Manager) ListTasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// Tasks returns the registered tasks in registration order.
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]*Task, 0, len(m.order))
	for _, name := range m.order {
		tasks = append(tasks, m.tasks[name])
	}
	return tasks
}

// Scheduler exposes the owned scheduler.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// StartScheduler runs the scheduler loop, blocking until it stops.
func (m *Manager) StartScheduler(ctx context.Context) {
	m.logger.Info("starting scheduler")
	m.scheduler.Run(ctx)
}

// StopScheduler requests the scheduler loop to stop.
func (m *Manager) StopScheduler() {
	m.logger.Info("stopping scheduler")
	m.scheduler.Stop()
}

// runTask executes the task and journals the outcome.
func (m *Manager) runTask(ctx context.Context, task *Task, trigger RunTrigger) (any, error) {
	started := time.Now()
	result, err := task.Execute(ctx)
	m.recordRun(ctx, task, trigger, started, result, err)
	return result, err
}

func (m *Manager) recordRun(ctx context.Context, task *Task, trigger RunTrigger, started time.Time, result any, runErr error) {
	if m.history == nil {
		return
	}
	rec := &RunRecord{
		ID:        uuid.NewString(),
		TaskName:  task.Name,
		Trigger:   trigger,
		Status:    TaskStatusCompleted,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
	if result != nil {
		rec.Output = fmt.Sprintf("%v", result)
	}
	if runErr != nil {
		rec.Status = TaskStatusFailed
		msg := runErr.Error()
		rec.Error = &msg
	}
	if err := m.history.Append(ctx, rec); err != nil {
		m.logger.Warn("append run history", "task", task.Name, "err", err)
	}
}

// managerExecutor routes scheduler-driven executions through the
// Manager so they are journaled and failures are pushed to the
// notifier. The error still returns to the scheduler, which isolates it
// per entry.
type managerExecutor struct {
	m *Manager
}

func (e managerExecutor) Execute(ctx context.Context, task *Task) (any, error) {
	result, err := e.m.runTask(ctx, task, RunTriggerScheduled)
	if err != nil && e.m.notifier != nil {
		if nerr := e.m.notifier.Send(ctx, "task failed: "+task.Name, err.Error()); nerr != nil {
			e.m.logger.Warn("send failure notification", "task", task.Name, "err", nerr)
		}
	}
	return result, err
}
