package core

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestCommandWorkCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}
	work := CommandWork("echo hi", 10*time.Second, "")
	result, err := work(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out, ok := result.(string)
	if !ok {
		t.Fatalf("expected string output, got %T", result)
	}
	if !strings.Contains(out, "hi") {
		t.Fatalf("expected captured stdout, got %q", out)
	}
}

func TestCommandWorkExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}
	work := CommandWork("exit 3", 10*time.Second, "")
	_, err := work(context.Background())
	if err == nil {
		t.Fatal("expected exit-code error")
	}
	if !strings.Contains(err.Error(), "exited with code 3") {
		t.Fatalf("unexpected error %q", err)
	}
}

func TestCommandWorkTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}
	work := CommandWork("sleep 5", 100*time.Millisecond, "")
	start := time.Now()
	_, err := work(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("unexpected error %q", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout took too long to fire")
	}
}

func TestCommandWorkWorkingDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh semantics")
	}
	dir := t.TempDir()
	work := CommandWork("pwd", 10*time.Second, dir)
	result, err := work(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result.(string), dir) {
		t.Fatalf("expected output under %s, got %q", dir, result)
	}
}
