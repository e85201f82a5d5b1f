// Package exitcodes defines the standard exit codes used by tapzero.
package exitcodes

// Exit code constants used when the process-wide runner signals completion:
//
// * Success (0): every assertion in the run passed
// * TestFailure (1): one or more assertions failed
// * RuntimeErr (2): usage faults or errors thrown out of a test function
const (
	Success     = 0 // All assertions pass
	TestFailure = 1 // Assertion failures
	RuntimeErr  = 2 // Usage faults or uncaught test errors
)
