package tapzero

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bicycle-codes/tapzero/callsite"
	"github.com/bicycle-codes/tapzero/deepequal"
	"github.com/bicycle-codes/tapzero/metrics"
	"github.com/bicycle-codes/tapzero/tap"
)

// TestFunc is a user-supplied test body. It receives its own T and may block
// for as long as it needs; the runner awaits it before moving on.
type TestFunc func(t *T)

// T owns one test function's execution lifecycle: the assertion vocabulary,
// the planned-vs-actual assertion counts and the pass/fail tally. All
// protocol lines flow through the owning runner's sink.
//
// A T moves through pending -> running -> done exactly once. Any assertion
// made after the done transition is a fatal usage error.
type T struct {
	name    string
	runner  *Runner
	strict  bool
	log     log.Logger
	planned int
	hasPlan bool
	actual  int
	pass    int
	fail    int
	done    bool
}

// Plan declares the exact number of assertions this test expects to make.
// Asserting past the plan, or ending the test short of it, is fatal. A
// second call simply overrides the first.
func (t *T) Plan(n int) {
	if n < 0 {
		panic(NewUsageError("test %q: plan must be >= 0, got %d", t.name, n))
	}
	t.planned = n
	t.hasPlan = true
}

// Equal asserts coercive equality of actual and expected.
func (t *T) Equal(actual, expected any, desc ...string) {
	t.assert(deepequal.LooseEqual(actual, expected), actual, expected,
		"should be equal", "equal", desc)
}

// NotEqual asserts coercive inequality of actual and expected.
func (t *T) NotEqual(actual, expected any, desc ...string) {
	t.assert(!deepequal.LooseEqual(actual, expected), actual, expected,
		"should not be equal", "notEqual", desc)
}

// DeepEqual asserts structural equivalence of actual and expected.
func (t *T) DeepEqual(actual, expected any, desc ...string) {
	t.assert(deepequal.Equal(actual, expected), actual, expected,
		"should be equivalent", "deepEqual", desc)
}

// NotDeepEqual asserts structural non-equivalence of actual and expected.
func (t *T) NotDeepEqual(actual, expected any, desc ...string) {
	t.assert(!deepequal.Equal(actual, expected), actual, expected,
		"should not be equivalent", "notDeepEqual", desc)
}

// Ok asserts that value is truthy: non-nil, non-zero, non-empty.
func (t *T) Ok(value any, desc ...string) {
	t.assert(truthy(value), value, "truthy value", "should be truthy", "ok", desc)
}

// Fail records an unconditional failure.
func (t *T) Fail(desc ...string) {
	t.assert(false, "fail called", "fail called", "fail called", "fail", desc)
}

// IfError asserts that err is absent.
func (t *T) IfError(err error, desc ...string) {
	var actual any = tap.Undefined
	if err != nil {
		actual = err
	}
	t.assert(err == nil, actual, "no error", "error is falsy", "ifError", desc)
}

// Throws invokes fn and asserts that it panics. An optional first argument
// constrains the recovered message: a *regexp.Regexp must match it, a plain
// string must be contained in it. Any other expectation type is a fatal
// usage error. An optional trailing string is the assertion description.
func (t *T) Throws(fn func(), args ...any) {
	expected, desc := splitThrowsArgs(t, args)

	caught := capturePanic(fn)
	pass := caught != nil
	if pass && expected != nil {
		msg := panicMessage(caught)
		switch e := expected.(type) {
		case *regexp.Regexp:
			pass = e.MatchString(msg)
		case string:
			pass = strings.Contains(msg, e)
		}
	}

	var actual any = tap.Undefined
	if caught != nil {
		actual = panicMessage(caught)
	}
	var want any = tap.Undefined
	if expected != nil {
		want = fmt.Sprintf("%v", expected)
	}
	t.assert(pass, actual, want, "should throw", "throws", desc)
}

// Comment emits a TAP comment line. It is not an assertion and does not
// affect any counts.
func (t *T) Comment(msg string) {
	t.runner.report(tap.Comment(msg))
}

// Name returns the test's display name.
func (t *T) Name() string {
	return t.name
}

// assert is the single funnel every assertion goes through: it enforces the
// done/plan state machine, allocates the run-wide sequence id, updates the
// tally and emits the result line, plus the diagnostic block on failure.
func (t *T) assert(pass bool, actual, expected any, fallback, operator string, desc []string) {
	if t.done {
		panic(NewUsageError("assertion %q after test %q has ended", operator, t.name))
	}
	description := fallback
	if len(desc) > 0 && desc[0] != "" {
		description = desc[0]
	} else if t.strict {
		panic(NewUsageError("test %q: assertion %q requires a description in strict mode", t.name, operator))
	}
	if t.hasPlan && t.actual+1 > t.planned {
		panic(NewUsageError("test %q exceeded plan: planned %d assertions", t.name, t.planned))
	}
	t.actual++
	if pass {
		t.pass++
	} else {
		t.fail++
	}

	id := t.runner.nextID()
	t.runner.report(tap.Result(pass, id, description))
	metrics.RecordAssertion(t.runner.currentRunID(), t.name, operator, pass)

	if !pass {
		t.reportFailure(operator, actual, expected, description)
	}
}

// reportFailure emits the diagnostic block under a "not ok" line: operator,
// serialized expected/actual, the best-effort call site of the failing
// assertion and the captured stack.
func (t *T) reportFailure(operator string, actual, expected any, description string) {
	stack := string(debug.Stack())
	stackLines := append([]string{"Error: " + description},
		strings.Split(strings.TrimRight(stack, "\n"), "\n")...)

	lines := tap.Diagnostic(
		operator,
		tap.EncodeValue(expected),
		tap.EncodeValue(actual),
		callsite.Resolve(stack),
		stackLines,
	)
	for _, line := range lines {
		t.runner.report(line)
	}
}

// run executes the test body: it emits the name comment, invokes fn with
// this T, marks the test done and verifies the plan was met. A panic out of
// fn aborts the test; usage errors keep their type, anything else is wrapped.
func (t *T) run(fn TestFunc) (err error) {
	t.log.Debug("Running test", "test", t.name)
	t.runner.report(tap.Comment(t.name))

	defer func() {
		t.done = true
		if rec := recover(); rec != nil {
			if usageErr, ok := rec.(*UsageError); ok {
				err = usageErr
				return
			}
			err = fmt.Errorf("test %q panicked: %v", t.name, rec)
		}
	}()

	fn(t)

	if t.hasPlan && t.actual < t.planned {
		return NewUsageError("test %q ended before its plan: planned %d, asserted %d",
			t.name, t.planned, t.actual)
	}
	return nil
}

func splitThrowsArgs(t *T, args []any) (expected any, desc []string) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		expected = args[0]
	case 2:
		expected = args[0]
		d, ok := args[1].(string)
		if !ok {
			panic(NewUsageError("test %q: throws description must be a string, got %T", t.name, args[1]))
		}
		desc = []string{d}
	default:
		panic(NewUsageError("test %q: throws takes at most an expectation and a description", t.name))
	}
	switch expected.(type) {
	case nil, *regexp.Regexp, string:
	default:
		panic(NewUsageError("test %q: throws expectation must be a *regexp.Regexp or string, got %T", t.name, expected))
	}
	return expected, desc
}

func capturePanic(fn func()) (caught any) {
	defer func() {
		caught = recover()
	}()
	fn()
	return nil
}

func panicMessage(v any) string {
	switch m := v.(type) {
	case error:
		return m.Error()
	case string:
		return m
	default:
		return fmt.Sprintf("%v", m)
	}
}

// truthy maps a value onto pass/fail for Ok: nil, false, zero numbers, NaN
// and empty strings are falsy; everything else passes.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case error:
		return x != nil
	}
	if f, ok := toComparableFloat(v); ok {
		return f != 0 && f == f
	}
	return true
}

func toComparableFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
