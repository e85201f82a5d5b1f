package tapzero

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineCollector is a test double for the line sink.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) sink(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *lineCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// newManualRunner returns a runner whose auto-run never fires, for tests
// that drive Run directly.
func newManualRunner(cfg Config) (*Runner, *lineCollector) {
	collector := &lineCollector{}
	cfg.Sink = collector.sink
	cfg.ScheduleDelay = time.Hour
	return NewRunner(cfg), collector
}

func TestRunSinglePassingTest(t *testing.T) {
	r, collector := newManualRunner(Config{})
	require.NoError(t, r.Add("t1", func(t *T) {
		t.Ok(true)
	}, false))
	r.scheduler.Stop()

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"TAP version 13",
		"# t1",
		"ok 1 should be truthy",
		"",
		"1..1",
		"# tests 1",
		"# pass  1",
		"",
		"# ok",
	}, collector.all())

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 1, result.Stats.Total)
	assert.Equal(t, 1, result.Stats.Passed)
	assert.Equal(t, 0, result.Stats.Failed)
	assert.NotEmpty(t, result.RunID)
}

func TestRunFailingAssertionDiagnostics(t *testing.T) {
	r, collector := newManualRunner(Config{})
	require.NoError(t, r.Add("t1", func(t *T) {
		t.Equal(1, 2)
	}, false))
	r.scheduler.Stop()

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusFail, result.Status)

	lines := collector.all()
	require.Greater(t, len(lines), 7)
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "# t1", lines[1])
	assert.Equal(t, "not ok 1 should be equal", lines[2])
	assert.Equal(t, "  ---", lines[3])
	assert.Equal(t, "    operator: equal", lines[4])
	assert.Equal(t, "    expected: 2", lines[5])
	assert.Equal(t, "    actual:   1", lines[6])
	assert.Equal(t, "    stack:    |-", lines[7])
	assert.Contains(t, lines, "      Error: should be equal")
	assert.Contains(t, lines, "  ...")
	assert.Contains(t, lines, "# fail  1")
	assert.NotContains(t, lines, "# ok")
}

func TestRunOrderAndSharedIDs(t *testing.T) {
	r, collector := newManualRunner(Config{})
	require.NoError(t, r.Add("first", func(t *T) {
		t.Ok(true, "a")
		t.Ok(true, "b")
	}, false))
	require.NoError(t, r.Add("second", func(t *T) {
		t.Ok(true, "c")
	}, false))
	r.scheduler.Stop()

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	lines := collector.all()
	assert.Equal(t, "# first", lines[1])
	assert.Equal(t, "ok 1 a", lines[2])
	assert.Equal(t, "ok 2 b", lines[3])
	assert.Equal(t, "# second", lines[4])
	assert.Equal(t, "ok 3 c", lines[5])
	assert.Contains(t, lines, "1..3")
}

func TestExclusiveTestsSkipTheRest(t *testing.T) {
	r, collector := newManualRunner(Config{})
	require.NoError(t, r.Add("normal-1", func(t *T) { t.Ok(true, "n1") }, false))
	require.NoError(t, r.Add("picked", func(t *T) { t.Ok(true, "p") }, true))
	require.NoError(t, r.Add("normal-2", func(t *T) { t.Ok(true, "n2") }, false))
	r.scheduler.Stop()

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Tests, 3)
	assert.Equal(t, "picked", result.Tests[0].Name)
	assert.Equal(t, StatusPass, result.Tests[0].Status)
	assert.Equal(t, "normal-1", result.Tests[1].Name)
	assert.Equal(t, StatusSkip, result.Tests[1].Status)
	assert.Equal(t, "normal-2", result.Tests[2].Name)
	assert.Equal(t, StatusSkip, result.Tests[2].Status)
	assert.Equal(t, 2, result.Stats.Skipped)
	assert.Equal(t, 1, result.Stats.Total)

	lines := collector.all()
	assert.NotContains(t, lines, "# normal-1")
	assert.NotContains(t, lines, "# normal-2")
}

func TestManualRunSupersedesScheduledRun(t *testing.T) {
	collector := &lineCollector{}
	r := NewRunner(Config{Sink: collector.sink, ScheduleDelay: 50 * time.Millisecond})
	require.NoError(t, r.Add("t1", func(t *T) { t.Ok(true, "runs once") }, false))

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPass, result.Status)

	// Let the armed auto-run fire; it must yield to the manual run.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.scheduler.WaitForShutdown(ctx))

	headers := 0
	for _, line := range collector.all() {
		if line == "TAP version 13" {
			headers++
		}
	}
	assert.Equal(t, 1, headers)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsUsageError(err))
}

func TestAddAfterCompletionFails(t *testing.T) {
	r, _ := newManualRunner(Config{})
	require.NoError(t, r.Add("t1", func(t *T) { t.Ok(true) }, false))
	r.scheduler.Stop()

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, r.Completed())

	err = r.Add("late", func(t *T) {}, false)
	require.Error(t, err)
	assert.True(t, IsUsageError(err))
}

func TestTestPanicAbortsRun(t *testing.T) {
	r, _ := newManualRunner(Config{})
	require.NoError(t, r.Add("boom", func(t *T) {
		panic("kaput")
	}, false))
	r.scheduler.Stop()

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaput")
	assert.False(t, IsUsageError(err))

	// The aborted run still counts as completed.
	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsUsageError(err))
}

func TestExitFuncCalledOnFailures(t *testing.T) {
	var exitCode int
	exitCalled := false
	r, _ := newManualRunner(Config{
		ExitFunc: func(code int) {
			exitCalled = true
			exitCode = code
		},
	})
	require.NoError(t, r.Add("t1", func(t *T) { t.Fail("boom") }, false))
	r.scheduler.Stop()

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, exitCalled)
	assert.Equal(t, 1, exitCode)
}

func TestExitFuncNotCalledWhenPassing(t *testing.T) {
	exitCalled := false
	r, _ := newManualRunner(Config{
		ExitFunc: func(int) { exitCalled = true },
	})
	require.NoError(t, r.Add("t1", func(t *T) { t.Ok(true) }, false))
	r.scheduler.Stop()

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, exitCalled)
}

func TestOnFinishSupersedesExit(t *testing.T) {
	exitCalled := false
	r, _ := newManualRunner(Config{
		ExitFunc: func(int) { exitCalled = true },
	})
	var got *RunnerResult
	require.NoError(t, r.OnFinish(func(result *RunnerResult) { got = result }))
	require.NoError(t, r.Add("t1", func(t *T) { t.Fail("boom") }, false))
	r.scheduler.Stop()

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, exitCalled)
	require.NotNil(t, got)
	assert.Same(t, result, got)
}

func TestOnFinishRequiresCallback(t *testing.T) {
	r, _ := newManualRunner(Config{})
	err := r.OnFinish(nil)
	require.Error(t, err)
	assert.True(t, IsUsageError(err))
}

func TestAutoRunAndWait(t *testing.T) {
	collector := &lineCollector{}
	r := NewRunner(Config{Sink: collector.sink})

	require.NoError(t, r.Add("t1", func(t *T) { t.Ok(true, "first") }, false))
	require.NoError(t, r.Add("t2", func(t *T) { t.Ok(true, "second") }, false))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := r.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 2, result.Stats.Total)

	lines := collector.all()
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Contains(t, lines, "# ok")
}

func TestWaitHonorsContext(t *testing.T) {
	r, _ := newManualRunner(Config{})
	require.NoError(t, r.Add("t1", func(t *T) { t.Ok(true) }, false))
	r.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunnerResultErr(t *testing.T) {
	failing := &RunnerResult{Stats: ResultStats{Total: 3, Passed: 2, Failed: 1}}
	err := failing.Err()
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "1 of 3 assertions failed")

	passing := &RunnerResult{Stats: ResultStats{Total: 3, Passed: 3}}
	assert.NoError(t, passing.Err())
}

func TestRunnerResultString(t *testing.T) {
	result := &RunnerResult{
		Duration: 1500 * time.Millisecond,
		Stats:    ResultStats{Total: 3, Passed: 2, Failed: 1},
	}
	s := result.String()
	assert.Contains(t, s, "tests 3")
	assert.Contains(t, s, "pass 2")
	assert.Contains(t, s, "fail 1")
}
