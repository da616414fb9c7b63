// Package scheduler implements the Scheduler (C8): a tick-driven job
// runner with at-most-one-in-flight-per-job semantics, dynamic
// add/remove/trigger, and orphaned-task result discarding on job
// replacement or removal.
//
// Grounded on the teacher's internal/cron/scheduler.go and
// internal/cron/types.go (Job/Schedule/Option functional-options shape,
// NewScheduler/Start/Stop/RunOnce/RegisterJob/UnregisterJob/RunJob/runDue
// structure) and internal/cron/schedule.go's use of
// github.com/robfig/cron/v3 for period parsing. The teacher's scheduler
// relies on NextRun timing alone and does not track an in-flight task slot
// per job or orphan a replaced job's running task — both are genuine new
// logic layered onto the teacher's structure to satisfy spec §4.7/§8.
package scheduler

import (
	"context"
	"time"
)

// Job is a named, periodic unit of scheduled work. Names are unique within
// one Scheduler instance.
type Job struct {
	Name     string
	PeriodMS int64
	// CronExpr, if set, overrides PeriodMS with a robfig/cron/v3
	// expression for computing the next run time.
	CronExpr string
	Prompt   string
	AgentOpts map[string]any
	OnResult func(Result)
}

// Result is what a one-shot agent run produces for a job.
type Result struct {
	JobName string
	Text    string
	Error   string
	Turns   int
}

// Runner executes one job's prompt against an agent configuration and
// returns a Result. Scheduler does not itself know how to build an Agent
// server/Turn-engine run — that's supplied by the caller, keeping this
// package decoupled from internal/turn and internal/agentserver.
type Runner func(ctx context.Context, job Job) Result

// jobState is the scheduler's internal bookkeeping for one job: the
// public Job definition plus the timing/in-flight fields the teacher's Job
// struct keeps inline (NextRun/LastRun/running_task) but which this
// implementation keeps out of the public Job value so replacing a Job by
// name is a pure-data operation.
type jobState struct {
	job      Job
	nextRun  time.Time
	lastRun  time.Time
	lastErr  string
	running  bool
	genID    uint64 // generation: fresh on every insert/replace (a removed job's entry is deleted), lets an in-flight task's completion recognize it's been orphaned
}
