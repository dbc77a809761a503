package core

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	if _, err := ParseCron("*/5 * * * *"); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if _, err := ParseCron("0 9 * * 1-5"); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if _, err := ParseCron("garbage"); err == nil {
		t.Fatal("invalid expression accepted")
	}
	if _, err := ParseCron("@hourly"); err == nil {
		t.Fatal("descriptor shorthand should be rejected")
	}
}

func TestNextOccurrences(t *testing.T) {
	schedule, err := ParseCron("0 * * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	times := NextOccurrences(schedule, base, 3)
	if len(times) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(times))
	}
	want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	for i, got := range times {
		if !got.Equal(want) {
			t.Fatalf("occurrence %d: expected %s, got %s", i, want, got)
		}
		want = want.Add(time.Hour)
	}
}
