package core

import (
	"context"
	"time"
)

// RunTrigger says what caused an execution.
type RunTrigger string

const (
	RunTriggerManual    RunTrigger = "manual"
	RunTriggerScheduled RunTrigger = "scheduled"
)

// RunRecord is one completed execution of a registered task. Records are
// appended to the history journal after the run ends, success or
// failure; scheduling state itself is never persisted.
type RunRecord struct {
	ID        string
	TaskName  string
	Trigger   RunTrigger
	Status    TaskStatus
	Output    string
	Error     *string
	StartedAt time.Time
	EndedAt   time.Time
	CreatedAt time.Time
}

// History is the journal the Manager appends completed runs to.
type History interface {
	Append(ctx context.Context, rec *RunRecord) error
}

// Notifier pushes a notification when a scheduler-driven run fails.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}
