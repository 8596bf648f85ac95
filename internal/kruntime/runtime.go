// Package kruntime defines the interpreter contract the execution core
// depends on: import a module, get an attribute, call a callable with
// keyword arguments, advance a generator once, classify a raised
// exception, and render a value for display. The core (internal/fixture,
// internal/runner, internal/normalize) only ever sees this interface;
// internal/starlarkhost is the one package that implements it concretely.
package kruntime

import (
	"fmt"

	"github.com/karvarun/karva/internal/kpath"
)

// Value is an opaque runtime value: a user object, a callable handle, a
// fixture's produced value, or a test argument. The core never inspects a
// Value's representation directly — it passes values back into the
// Runtime (Call, Display, ClassifyException) or compares them with Go's
// == when two Values are known to have come from the same source.
type Value interface{}

// Kwargs is a set of keyword arguments bound to a callable invocation,
// e.g. a fixture's resolved dependency values or a test's bound
// parameters.
type Kwargs map[string]Value

// Callable is a handle to an invocable function or method obtained from a
// Module via GetAttr, or carried directly on a DiscoveredFixture/Test.
type Callable interface{}

// Generator is a suspended invocation of a generator function (one whose
// body contains a yield). Advance resumes it until the next yield or
// completion.
type Generator interface{}

// AdvanceResult is the outcome of resuming a Generator once.
type AdvanceResult struct {
	// Yielded is the value passed to the next `yield expr`, valid when
	// Done is false.
	Yielded Value
	// Done is true once the generator body has returned (the host
	// language's StopIteration) rather than yielded again.
	Done bool
}

// ExceptionKind classifies a raised exception the way the core needs to
// react to it, independent of the host language's actual exception
// hierarchy.
type ExceptionKind int

const (
	// ExceptionOther is any exception that is none of the distinguished
	// kinds below.
	ExceptionOther ExceptionKind = iota
	// ExceptionSkip corresponds to the user-facing `skip` helper.
	ExceptionSkip
	// ExceptionFail corresponds to the user-facing `fail` helper.
	ExceptionFail
	// ExceptionMissingArgument is raised by the runtime itself when a
	// callable is invoked without a required keyword argument; the core
	// converts this into a MissingFixtures diagnostic.
	ExceptionMissingArgument
)

// Exception is a raised error captured by the Runtime, already classified.
type Exception struct {
	Kind ExceptionKind
	// TypeName is the raised exception's class name, e.g. "ValueError",
	// used verbatim in ReasonException test-failure diagnostics.
	TypeName string
	// Message is the exception's primary argument, stringified.
	Message string
	// MissingNames is populated only for ExceptionMissingArgument: the
	// argument names the runtime could not resolve.
	MissingNames []string
	// Traceback is the full host-language traceback text, used verbatim
	// in FixtureExecutionError / test-failure diagnostics.
	Traceback string
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s", e.Message)
}

// Runtime is the interpreter contract the execution core consumes. All
// interaction with user code is routed through a single Runtime instance
// per worker process, which owns the interpreter's global lock: only one
// goroutine at a time is ever inside a Runtime call.
type Runtime interface {
	// Import loads a module by its dotted path (relative to the project
	// root) and returns an opaque handle for subsequent GetAttr calls.
	Import(modulePath string) (Value, error)

	// GetAttr looks up a named attribute on a module or object value,
	// typically a top-level function.
	GetAttr(obj Value, name string) (Value, bool)

	// Call invokes a callable with keyword arguments. If the callable
	// raises, the error unwraps to *Exception via errors.As.
	Call(fn Callable, kwargs Kwargs) (Value, error)

	// NewGenerator prepares (but does not start) a generator-function
	// invocation for later stepping via Advance.
	NewGenerator(fn Callable, kwargs Kwargs) (Generator, error)

	// Advance resumes a Generator until its next yield or completion.
	Advance(gen Generator) (AdvanceResult, error)

	// ClassifyException converts a raised error from Call/Advance into a
	// classified Exception. ok is false if err did not originate from
	// this Runtime (a Go-level error instead).
	ClassifyException(err error) (*Exception, bool)

	// Display renders a value as it should appear in a snapshot body or
	// a diagnostic info line.
	Display(v Value) string
}

// SnapshotScope names the test currently executing, for a Runtime whose
// assert_snapshot-style builtin has no other way to reach call-site
// context (the test's file, display name, and whether the run is in
// snapshot-update mode).
type SnapshotScope struct {
	TestFile kpath.Path
	TestID   string
	Update   bool
}

// SnapshotHost is implemented by a Runtime that exposes a snapshot
// assertion builtin to user code. internal/runner type-asserts for it
// around each test's Call and skips the scope calls entirely against a
// Runtime that doesn't implement it (e.g. a test double with no
// snapshot support). EnterSnapshotScope must be paired with
// ExitSnapshotScope even when the test callable itself raises.
type SnapshotHost interface {
	Runtime
	EnterSnapshotScope(scope SnapshotScope)
	ExitSnapshotScope()
}
