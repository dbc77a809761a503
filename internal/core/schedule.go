package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleOptions describe when a task should run.
//
// The zero value means "run once, now". Every with Repeat makes the entry
// recur at a fixed interval. Cron takes a 5-field cron expression instead
// and implies Repeat; when set it governs the due times and At is ignored.
type ScheduleOptions struct {
	At     time.Time
	Every  time.Duration
	Repeat bool
	Cron   string
}

// ScheduledTask binds a task to a due-time policy and tracks the last
// run. The Manager's registry and the scheduler's entry list may share
// the same underlying Task.
type ScheduledTask struct {
	Task     *Task
	At       time.Time
	Every    time.Duration
	Repeat   bool
	CronExpr string

	cronSchedule cron.Schedule

	mu       sync.Mutex
	lastRun  *time.Time
	nextCron time.Time
}

func newScheduledTask(task *Task, opts ScheduleOptions, now time.Time) (*ScheduledTask, error) {
	at := opts.At
	if at.IsZero() {
		at = now
	}
	entry := &ScheduledTask{
		Task:     task,
		At:       at,
		Every:    opts.Every,
		Repeat:   opts.Repeat,
		CronExpr: opts.Cron,
	}
	if opts.Cron != "" {
		schedule, err := ParseCron(opts.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", task.Name, err)
		}
		entry.cronSchedule = schedule
		entry.Repeat = true
		entry.nextCron = schedule.Next(now)
	}
	return entry, nil
}

// IsDue reports whether the entry's time condition is met at now.
//
// An entry that has never run is due once now reaches its scheduled
// time. A recurring interval entry re-arms Every after its last run. A
// one-shot that already ran, or a recurring entry without an interval,
// is never due again.
func (st *ScheduledTask) IsDue(now time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.cronSchedule != nil {
		return !st.nextCron.IsZero() && !now.Before(st.nextCron)
	}
	if st.lastRun == nil {
		return !now.Before(st.At)
	}
	if st.Repeat && st.Every > 0 {
		return !now.Before(st.lastRun.Add(st.Every))
	}
	return false
}

// ShouldRun is IsDue with a guard against re-entering a task that is
// still executing.
func (st *ScheduledTask) ShouldRun(now time.Time) bool {
	return st.Task.Status() != TaskStatusRunning && st.IsDue(now)
}

// LastRun returns the time of the most recent execution, if any.
func (st *ScheduledTask) LastRun() (time.Time, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastRun == nil {
		return time.Time{}, false
	}
	return *st.lastRun, true
}

// markRun records a run at time now and advances cron-based entries to
// their next fire time. The scheduler calls this for failed runs too, so
// a failing recurring task is not retried faster than its interval.
func (st *ScheduledTask) markRun(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	run := now
	st.lastRun = &run
	if st.cronSchedule != nil {
		st.nextCron = st.cronSchedule.Next(now)
	}
}
