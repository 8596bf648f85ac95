package starlarkhost

import (
	"errors"

	"github.com/karvarun/karva/internal/kruntime"

	"go.starlark.net/starlark"
)

// skipSignal is the error returned by the predeclared skip() builtin. It
// is distinguished from an ordinary failure purely by Go type, unwrapped
// through starlark.EvalError by wrapException.
type skipSignal struct{ reason string }

func (s *skipSignal) Error() string { return s.reason }

// failSignal is the error returned by the predeclared fail() builtin.
type failSignal struct{ reason string }

func (f *failSignal) Error() string { return f.reason }

// wrapException turns any error raised out of a starlark.Call/starlark.Thread
// invocation into a *kruntime.Exception, the only error shape Call,
// NewGenerator and Advance ever return to the core.
func wrapException(err error) *kruntime.Exception {
	if exc, ok := err.(*kruntime.Exception); ok {
		return exc
	}

	msg := err.Error()
	traceback := ""
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Msg
		traceback = evalErr.Backtrace()
	}

	var skip *skipSignal
	if errors.As(err, &skip) {
		return &kruntime.Exception{Kind: kruntime.ExceptionSkip, TypeName: "Skip", Message: skip.reason, Traceback: traceback}
	}
	var fail *failSignal
	if errors.As(err, &fail) {
		return &kruntime.Exception{Kind: kruntime.ExceptionFail, TypeName: "Fail", Message: fail.reason, Traceback: traceback}
	}

	return &kruntime.Exception{Kind: kruntime.ExceptionOther, TypeName: "Error", Message: msg, Traceback: traceback}
}

// ClassifyException implements kruntime.Runtime.
func (r *Runtime) ClassifyException(err error) (*kruntime.Exception, bool) {
	exc, ok := err.(*kruntime.Exception)
	return exc, ok
}
