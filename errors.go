package tapzero

import (
	"errors"
	"fmt"
)

// UsageError represents a programming error in test-authoring code: adding a
// test after the run completed, asserting after a test ended, exceeding or
// under-running a declared plan, omitting a description in strict mode, or
// passing an unsupported expectation to Throws. Usage errors are fatal and
// lead to exit code 2.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s", e.Message)
}

// NewUsageError creates a new UsageError
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// IsUsageError checks if the error is or wraps a UsageError
func IsUsageError(err error) bool {
	var usageErr *UsageError
	return err != nil && errors.As(err, &usageErr)
}

// TestFailureError represents a run that finished with failing assertions
// (exit code 1)
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}
