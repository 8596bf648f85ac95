// Package kcli provides shared CLI plumbing for the karva binaries:
// process exit codes, writer helpers that ignore output-write errors,
// and --color resolution.
package kcli

// Process exit codes. This is NOT the 0/1/2 (success/error/warning) scheme
// skytest used; karva's 2 is reserved specifically for configuration and
// tag-expression parse failures, which abort before a run even starts.
const (
	// ExitOK indicates full success, or a run where every test was
	// skipped and none failed.
	ExitOK = 0

	// ExitTestFailure indicates at least one test failed during a run
	// that otherwise completed normally.
	ExitTestFailure = 1

	// ExitConfigError indicates a configuration or tag-expression parse
	// error that aborted the run before any test executed.
	ExitConfigError = 2
)
