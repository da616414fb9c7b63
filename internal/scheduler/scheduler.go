package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentrt/internal/observability"
	"github.com/haasonsaas/agentrt/internal/telemetry"
)

// ErrNotFound is returned by Trigger for an unknown job name.
var ErrNotFound = errors.New("scheduler: job not found")

// ErrAlreadyRunning is returned by Trigger when the named job already has
// a task in flight.
var ErrAlreadyRunning = errors.New("scheduler: job already running")

// ErrAlreadyStarted is returned by Start if called twice without an
// intervening Stop.
var ErrAlreadyStarted = errors.New("scheduler: already started")

// Option configures a Scheduler at construction, following the teacher's
// functional-options pattern (internal/cron's WithLogger/WithHTTPClient/...).
type Option func(*Scheduler)

// WithNow overrides the time source (for deterministic tests).
func WithNow(fn func() time.Time) Option {
	return func(s *Scheduler) { s.now = fn }
}

// WithTickInterval overrides how often the scheduler checks for due jobs.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger overrides the scheduler's logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRunner sets the function used to execute one job's prompt run.
func WithRunner(r Runner) Option {
	return func(s *Scheduler) { s.runner = r }
}

// Scheduler is a tick-driven job runner. A job's task slot holds at most
// one in-flight run; a tick that finds the slot occupied skips that job
// entirely rather than queueing (spec §4.7: "this is how a slow job does
// not stampede").
type Scheduler struct {
	mu           sync.Mutex
	jobs         map[string]*jobState
	runner       Runner
	now          func() time.Time
	tickInterval time.Duration
	logger       *observability.Logger
	started      bool
	lastGen      uint64 // last generation handed out by insertLocked
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// New builds a Scheduler. Jobs are installed by Start or AddJob.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:         make(map[string]*jobState),
		now:          time.Now,
		tickInterval: time.Second,
		logger:       observability.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start installs timers for each job at its period/cron expression and
// begins ticking. Returns ErrAlreadyStarted if already running.
func (s *Scheduler) Start(ctx context.Context, jobs []Job) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	for _, j := range jobs {
		s.insertLocked(j)
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop halts the tick loop and waits for any in-flight job tasks started
// by it to finish (the job-level supervisor — here, the Scheduler itself —
// must survive shutdown of any externally provided task supervisor; since
// this implementation spawns its own goroutines directly, "survive
// shutdown" means Stop waits for them rather than abandoning them).
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs runDue synchronously-triggered once, useful for tests that
// don't want to wait on the tick interval.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runDue(ctx)
}

// Jobs returns a snapshot of the currently registered job definitions.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, st := range s.jobs {
		out = append(out, st.job)
	}
	return out
}

// insertLocked installs or replaces a job under a fresh generation from a
// scheduler-wide counter, so an in-flight task started under an older
// definition (replaced, or removed and re-added under the same name)
// recognizes on completion that it has been orphaned and discards its
// result instead of delivering it to either the old or new callback
// (spec §4.7, §8 "Scheduler replacement").
func (s *Scheduler) insertLocked(job Job) {
	s.lastGen++
	s.jobs[job.Name] = &jobState{job: job, nextRun: nextRun(job, s.now()), genID: s.lastGen}
}

// AddJob inserts a new job or replaces an existing one by name.
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("scheduler: job name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(job)
	return nil
}

// RemoveJob deletes a job by name. An in-flight task for it (if any) is
// orphaned: its eventual result is discarded.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, name)
	return nil
}

// Trigger runs a job immediately. Fails with ErrAlreadyRunning if a task
// is already in flight for it, ErrNotFound if no such job is registered.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	st, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if st.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	st.running = true
	gen := st.genID
	s.mu.Unlock()

	s.wg.Add(1)
	go s.execute(ctx, name, gen)
	return nil
}

// runDue spawns a task for every job whose slot is empty and whose
// nextRun has arrived; a job whose slot is occupied is skipped for this
// tick entirely — no queueing, no overlap.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()
	s.mu.Lock()
	type due struct {
		name string
		gen  uint64
	}
	var toRun []due
	for name, st := range s.jobs {
		if st.running {
			telemetry.SchedulerTicks.WithLabelValues(name, "skipped").Inc()
			continue
		}
		if st.nextRun.IsZero() || now.Before(st.nextRun) {
			continue
		}
		st.running = true
		toRun = append(toRun, due{name: name, gen: st.genID})
	}
	s.mu.Unlock()

	for _, d := range toRun {
		telemetry.SchedulerTicks.WithLabelValues(d.name, "started").Inc()
	}

	for _, d := range toRun {
		s.wg.Add(1)
		go s.execute(ctx, d.name, d.gen)
	}
}

// execute runs one job's task and installs the result, unless the job's
// generation has moved on (replaced) or the job no longer exists
// (removed) by the time it completes — in which case the result is
// discarded rather than delivered to either callback.
func (s *Scheduler) execute(ctx context.Context, name string, gen uint64) {
	defer s.wg.Done()

	s.mu.Lock()
	st, ok := s.jobs[name]
	if !ok || st.genID != gen {
		s.mu.Unlock()
		return
	}
	job := st.job
	s.mu.Unlock()

	result, crashed := s.runSafely(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok = s.jobs[name]
	if !ok || st.genID != gen {
		telemetry.SchedulerTicks.WithLabelValues(name, "orphaned").Inc()
		s.logger.Info("scheduler: discarding orphaned task result", "job", name)
		return
	}
	// The job slot always returns to empty and the next-run timer always
	// advances, whether the task crashed or completed — a crash must not
	// wedge the job permanently in "running".
	st.running = false
	st.nextRun = nextRun(job, s.now())

	if crashed {
		// Task crash: drop the result entirely, never invoke on_result
		// (spec §4.7) — distinct from a job that ran and returned an
		// error, which is still a delivered Result.
		s.logger.Warn("scheduler: job task crashed, result dropped", "job", name, "error", result.Error)
		return
	}

	st.lastRun = s.now()
	st.lastErr = result.Error
	if job.OnResult != nil {
		job.OnResult(result)
	}
}

func (s *Scheduler) runSafely(ctx context.Context, job Job) (result Result, crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			crashed = true
			result = Result{JobName: job.Name, Error: fmt.Sprintf("job crashed: %v", r)}
		}
	}()
	if s.runner == nil {
		return Result{JobName: job.Name, Error: "no runner configured"}, false
	}
	return s.runner(ctx, job), false
}
