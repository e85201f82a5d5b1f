// Package tapzero is a minimal test-execution and reporting engine. It runs
// registered test functions strictly sequentially, collects the pass/fail
// assertions made inside them and streams a line-oriented TAP13 report
// through an injectable sink.
//
// Tests registered through the top-level helpers run automatically against a
// process-wide runner; call Wait to block until that run has finished:
//
//	tapzero.Test("addition", func(t *tapzero.T) {
//		t.Equal(1+1, 2)
//	})
//	tapzero.Wait(context.Background())
//
// Callers needing isolation construct their own Runner with NewRunner.
package tapzero

import (
	"context"
	"os"
	"sync"
)

var (
	defaultRunner *Runner
	defaultOnce   sync.Once
)

// DefaultRunner returns the lazily-created process-wide runner. It writes to
// stdout and, on a run with failures and no completion callback, exits the
// process with a non-zero status.
func DefaultRunner() *Runner {
	defaultOnce.Do(func() {
		defaultRunner = NewRunner(Config{
			ExitFunc: os.Exit,
		})
	})
	return defaultRunner
}

// Test registers a named test function against the process-wide runner.
// Registering after the run completed is fatal.
func Test(name string, fn TestFunc) {
	mustRegister(DefaultRunner().Add(name, fn, false))
}

// Only registers an exclusive test: when any exclusive test exists, all
// non-exclusive registrations are retained but skipped.
func Only(name string, fn TestFunc) {
	mustRegister(DefaultRunner().Add(name, fn, true))
}

// Skip registers nothing. It exists so a test can be parked without losing
// its body.
func Skip(name string, fn TestFunc) {}

// SetStrict toggles strict mode on the process-wide runner: every assertion
// in tests registered afterwards must carry an explicit description.
func SetStrict(strict bool) {
	DefaultRunner().SetStrict(strict)
}

// OnFinish registers the completion callback on the process-wide runner,
// replacing the default exit-status side effect.
func OnFinish(fn func(*RunnerResult)) {
	mustRegister(DefaultRunner().OnFinish(fn))
}

// Wait blocks until the process-wide run has finished.
func Wait(ctx context.Context) (*RunnerResult, error) {
	return DefaultRunner().Wait(ctx)
}

// Usage faults at registration time have no caller to report to and are
// raised immediately.
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
