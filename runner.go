package tapzero

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bicycle-codes/tapzero/exitcodes"
	"github.com/bicycle-codes/tapzero/metrics"
	"github.com/bicycle-codes/tapzero/tap"
)

// Status represents the possible outcomes of a test or run
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Sink receives one protocol line per call. It is the runner's only
// side-effecting boundary.
type Sink func(line string)

// Config holds configuration for creating a new Runner.
type Config struct {
	Strict        bool          // Require a description on every assertion
	Sink          Sink          // Line sink; defaults to stdout
	Log           log.Logger    // Structured logger; defaults to the root logger
	ScheduleDelay time.Duration // Settle delay before the auto-run fires
	ExitFunc      func(int)     // Exit signal on failures; nil disables the side effect
}

// TestResult captures the outcome of a single test
type TestResult struct {
	Name     string
	Pass     int
	Fail     int
	Status   Status
	Duration time.Duration
}

// ResultStats tracks assertion statistics for a run
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int // Registrations retained but not executed
	StartTime time.Time
	EndTime   time.Time
}

// RunnerResult captures the complete test run results
type RunnerResult struct {
	Tests    []*TestResult
	Status   Status
	Duration time.Duration
	Stats    ResultStats
	RunID    string
}

// String returns a formatted string representation of the run results
func (r *RunnerResult) String() string {
	return fmt.Sprintf("Test Run Results (%.1fs): tests %d, pass %d, fail %d, skipped %d",
		r.Duration.Seconds(), r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Skipped)
}

// Err returns a TestFailureError when the run had failing assertions, nil
// otherwise.
func (r *RunnerResult) Err() error {
	if r.Stats.Failed == 0 {
		return nil
	}
	return NewTestFailureError(fmt.Sprintf("%d of %d assertions failed",
		r.Stats.Failed, r.Stats.Total))
}

type registration struct {
	t  *T
	fn TestFunc
}

// Runner owns the test registries and drives a single sequential run: tests
// execute strictly in registration order, one at a time, so protocol output
// and assertion ids are never interleaved. If any exclusive test was
// registered, only exclusive tests execute.
type Runner struct {
	mu        sync.Mutex
	cfg       Config
	tests     []*registration
	exclusive []*registration
	scheduled bool
	running   bool
	completed bool
	onFinish  func(*RunnerResult)
	scheduler *OneShotScheduler

	seq    atomic.Int64
	runID  string
	tracer trace.Tracer

	done      chan struct{}
	closeOnce sync.Once
	result    *RunnerResult
	runErr    error
}

// NewRunner creates a new Runner instance.
func NewRunner(cfg Config) *Runner {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.Sink == nil {
		cfg.Sink = func(line string) { fmt.Fprintln(os.Stdout, line) }
	}
	if cfg.ScheduleDelay == 0 {
		cfg.ScheduleDelay = DefaultScheduleDelay
	}
	return &Runner{
		cfg:    cfg,
		tracer: otel.Tracer("tapzero/runner"),
		done:   make(chan struct{}),
	}
}

// Add registers a named test function. The first registration arms a single
// deferred run; later registrations join it as long as they land before the
// run completes. When exclusive is true the test joins the exclusive
// registry instead.
func (r *Runner) Add(name string, fn TestFunc, exclusive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.completed {
		return NewUsageError("cannot add test %q: run already completed", name)
	}

	reg := &registration{
		t: &T{
			name:   name,
			runner: r,
			strict: r.cfg.Strict,
			log:    r.cfg.Log,
		},
		fn: fn,
	}
	if exclusive {
		r.exclusive = append(r.exclusive, reg)
	} else {
		r.tests = append(r.tests, reg)
	}
	r.cfg.Log.Debug("Registered test", "test", name, "exclusive", exclusive)

	if !r.scheduled {
		r.scheduled = true
		r.scheduler = NewOneShotScheduler(r.cfg.ScheduleDelay, r.cfg.Log)
		r.scheduler.Arm(r.runScheduled)
	}
	return nil
}

// SetStrict toggles strict mode. It affects tests registered afterwards;
// already-constructed tests keep the flag they inherited.
func (r *Runner) SetStrict(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Strict = strict
}

// OnFinish registers the single completion callback. A registered callback
// fully supersedes the default exit-status side effect.
func (r *Runner) OnFinish(fn func(*RunnerResult)) error {
	if fn == nil {
		return NewUsageError("onFinish requires a callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
	return nil
}

// Run executes the registered tests sequentially and emits the TAP stream
// plus the run summary. A runner runs at most once: a second call, or a call
// racing the scheduled auto-run, returns a usage error. An error thrown out
// of a test function, or a usage fault, aborts the run and is returned; it
// is never reported as a failing assertion.
func (r *Runner) Run(ctx context.Context) (*RunnerResult, error) {
	if !r.claimRun() {
		return nil, NewUsageError("run already started")
	}
	return r.execute(ctx)
}

// claimRun atomically claims the single run. A direct Run call and the
// scheduled auto-run can race here; exactly one wins.
func (r *Runner) claimRun() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.completed {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) execute(ctx context.Context) (*RunnerResult, error) {
	r.mu.Lock()
	regs := r.tests
	var skippedRegs []*registration
	if len(r.exclusive) > 0 {
		regs = r.exclusive
		skippedRegs = r.tests
	}
	r.runID = uuid.New().String()
	runID := r.runID
	r.mu.Unlock()

	start := time.Now()
	r.cfg.Log.Debug("Running tests", "run_id", runID, "tests", len(regs), "skipped", len(skippedRegs))

	result := &RunnerResult{
		RunID: runID,
		Stats: ResultStats{StartTime: start, Skipped: len(skippedRegs)},
	}

	r.report(tap.Version)
	for _, reg := range regs {
		_, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", reg.t.name))
		testStart := time.Now()
		err := reg.t.run(reg.fn)
		span.End()
		if err != nil {
			r.finish(nil, err)
			return nil, err
		}

		tr := &TestResult{
			Name:     reg.t.name,
			Pass:     reg.t.pass,
			Fail:     reg.t.fail,
			Status:   StatusPass,
			Duration: time.Since(testStart),
		}
		if reg.t.fail > 0 {
			tr.Status = StatusFail
		}
		result.Tests = append(result.Tests, tr)
		result.Stats.Total += reg.t.pass + reg.t.fail
		result.Stats.Passed += reg.t.pass
		result.Stats.Failed += reg.t.fail
	}

	for _, reg := range skippedRegs {
		result.Tests = append(result.Tests, &TestResult{
			Name:   reg.t.name,
			Status: StatusSkip,
		})
	}

	for _, line := range tap.Summary(result.Stats.Total, result.Stats.Passed, result.Stats.Failed) {
		r.report(line)
	}

	result.Duration = time.Since(start)
	result.Stats.EndTime = time.Now()
	result.Status = StatusPass
	if result.Stats.Failed > 0 {
		result.Status = StatusFail
	}
	metrics.RecordRun(runID, string(result.Status),
		result.Stats.Total, result.Stats.Passed, result.Stats.Failed, result.Duration)

	r.finish(result, nil)
	return result, nil
}

// Wait blocks until the scheduled run has fully finished and returns its
// result, or the error that aborted it.
func (r *Runner) Wait(ctx context.Context) (*RunnerResult, error) {
	select {
	case <-r.done:
		return r.result, r.runErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Completed reports whether the run has fully finished.
func (r *Runner) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// finish marks the runner completed and fires the completion side effect:
// the registered callback when present, otherwise the exit signal when any
// assertion failed.
func (r *Runner) finish(result *RunnerResult, err error) {
	r.mu.Lock()
	r.completed = true
	r.result = result
	r.runErr = err
	callback := r.onFinish
	r.mu.Unlock()
	r.closeOnce.Do(func() { close(r.done) })

	if err != nil {
		return
	}
	if callback != nil {
		callback(result)
		return
	}
	if failErr := result.Err(); failErr != nil && r.cfg.ExitFunc != nil {
		r.cfg.Log.Warn("Run completed with failures, signaling exit",
			"run_id", result.RunID, "error", failErr)
		r.cfg.ExitFunc(exitcodes.TestFailure)
	}
}

// runScheduled is the auto-run entry point fired by the one-shot scheduler.
// It yields to a run the caller already started; an aborted run is surfaced
// loudly rather than silently absorbed.
func (r *Runner) runScheduled() {
	if !r.claimRun() {
		r.cfg.Log.Debug("Run already started, skipping scheduled run")
		return
	}
	if _, err := r.execute(context.Background()); err != nil {
		r.cfg.Log.Error("Test run aborted", "error", err)
		if r.cfg.ExitFunc != nil {
			r.cfg.ExitFunc(exitcodes.RuntimeErr)
		}
	}
}

// nextID allocates the next run-wide assertion sequence number.
func (r *Runner) nextID() int {
	return int(r.seq.Add(1))
}

func (r *Runner) currentRunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

func (r *Runner) report(line string) {
	r.cfg.Sink(line)
}
