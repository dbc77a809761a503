package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func addWork(x, y int) Work {
	return func(ctx context.Context) (any, error) {
		return x + y, nil
	}
}

func failWork(msg string) Work {
	return func(ctx context.Context) (any, error) {
		return nil, errors.New(msg)
	}
}

func TestTaskCreation(t *testing.T) {
	task := NewTask("test_task", addWork(5, 3), "a test task")

	if task.Name != "test_task" {
		t.Fatalf("unexpected name %q", task.Name)
	}
	if task.Description != "a test task" {
		t.Fatalf("unexpected description %q", task.Description)
	}
	if task.Status() != TaskStatusPending {
		t.Fatalf("new task should be pending, got %s", task.Status())
	}
	if task.Result() != nil {
		t.Fatal("new task should have no result")
	}
	if _, ok := task.Duration(); ok {
		t.Fatal("duration should be unavailable before execution")
	}
}

func TestTaskExecution(t *testing.T) {
	task := NewTask("sum", addWork(5, 3), "")

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != 8 {
		t.Fatalf("expected result 8, got %v", result)
	}
	if task.Status() != TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status())
	}
	if task.Result() != 8 {
		t.Fatalf("stored result should be 8, got %v", task.Result())
	}
	started, ok := task.StartedAt()
	if !ok {
		t.Fatal("started_at should be set")
	}
	completed, ok := task.CompletedAt()
	if !ok {
		t.Fatal("completed_at should be set")
	}
	if completed.Before(started) {
		t.Fatal("completed_at must not precede started_at")
	}
}

func TestTaskFailure(t *testing.T) {
	task := NewTask("boom", failWork("it broke"), "")

	_, err := task.Execute(context.Background())
	if err == nil {
		t.Fatal("failure must surface to the caller")
	}
	if task.Status() != TaskStatusFailed {
		t.Fatalf("expected failed, got %s", task.Status())
	}
	if task.Err() != "it broke" {
		t.Fatalf("unexpected error text %q", task.Err())
	}
	if task.Result() != nil {
		t.Fatal("failed task should have no result")
	}
	if _, ok := task.CompletedAt(); !ok {
		t.Fatal("completed_at must be set even on failure")
	}
}

func TestTaskCancel(t *testing.T) {
	task := NewTask("pending", addWork(1, 2), "")
	if !task.Cancel() {
		t.Fatal("cancelling a pending task should succeed")
	}
	if task.Status() != TaskStatusCancelled {
		t.Fatalf("expected cancelled, got %s", task.Status())
	}
	// Cancel is terminal and idempotent.
	if task.Cancel() {
		t.Fatal("cancelling twice should be a no-op")
	}

	done := NewTask("done", addWork(1, 2), "")
	if _, err := done.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if done.Cancel() {
		t.Fatal("cancelling a completed task should be a no-op")
	}
	if done.Status() != TaskStatusCompleted {
		t.Fatalf("status should stay completed, got %s", done.Status())
	}

	running := NewTask("running", addWork(1, 2), "")
	running.mu.Lock()
	running.status = TaskStatusRunning
	running.mu.Unlock()
	if running.Cancel() {
		t.Fatal("cancelling a running task should be a no-op")
	}
	if running.Status() != TaskStatusRunning {
		t.Fatalf("status should stay running, got %s", running.Status())
	}
}

func TestTaskDuration(t *testing.T) {
	task := NewTask("timed", addWork(1, 2), "")
	if _, ok := task.Duration(); ok {
		t.Fatal("duration should be unavailable before execution")
	}
	if _, err := task.Execute(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	d, ok := task.Duration()
	if !ok {
		t.Fatal("duration should be available after execution")
	}
	if d < 0 {
		t.Fatalf("duration should be non-negative, got %s", d)
	}
}

func TestTaskReExecuteOverwrites(t *testing.T) {
	attempts := 0
	task := NewTask("flaky", func(ctx context.Context) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, fmt.Errorf("attempt %d failed", attempts)
		}
		return "ok", nil
	}, "")

	if _, err := task.Execute(context.Background()); err == nil {
		t.Fatal("first attempt should fail")
	}
	if task.Status() != TaskStatusFailed {
		t.Fatalf("expected failed, got %s", task.Status())
	}

	result, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %v", result)
	}
	if task.Status() != TaskStatusCompleted {
		t.Fatalf("expected completed, got %s", task.Status())
	}
	if task.Err() != "" {
		t.Fatalf("error should be cleared on re-execution, got %q", task.Err())
	}
}
