package starlarkhost

import (
	"fmt"

	"go.starlark.net/starlark"
)

// predeclared returns the global builtins every module sees. Decorator
// call syntax (fixture(), tags.parametrize(), ...) never needs an entry
// here: preprocess blanks decorator lines out of the source entirely
// before it reaches syntax.Parse, so the interpreter never executes them
// as code. skip/fail are called bare, like an ordinary function; the
// snapshot assertions are reached through the karva.* namespace instead,
// since that's how test code names them.
func (r *Runtime) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"__yield__":  starlark.NewBuiltin("__yield__", yieldBuiltin),
		"__assert__": starlark.NewBuiltin("__assert__", assertBuiltin),
		"skip":       starlark.NewBuiltin("skip", skipBuiltin),
		"fail":       starlark.NewBuiltin("fail", failBuiltin),
		"karva":      r.karvaModule(),
	}
}

func skipBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var reason starlark.String
	if err := starlark.UnpackArgs("skip", args, kwargs, "reason?", &reason); err != nil {
		return nil, err
	}
	return nil, &skipSignal{reason: string(reason)}
}

func failBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var reason starlark.String
	if err := starlark.UnpackArgs("fail", args, kwargs, "reason?", &reason); err != nil {
		return nil, err
	}
	return nil, &failSignal{reason: string(reason)}
}

// assertBuiltin backs the bare `assert cond[, msg]` statement rewritten by
// preprocess into `__assert__(cond[, msg])`.
func assertBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var cond starlark.Value
	var msg starlark.Value = starlark.None
	if err := starlark.UnpackArgs("__assert__", args, kwargs, "cond", &cond, "msg?", &msg); err != nil {
		return nil, err
	}
	if cond.Truth() {
		return starlark.None, nil
	}
	if s, ok := msg.(starlark.String); ok && string(s) != "" {
		return nil, fmt.Errorf("assertion failed: %s", string(s))
	}
	return nil, fmt.Errorf("assertion failed: %s", cond.String())
}

// yieldBuiltin backs `yield expr` rewritten by preprocess into
// `__yield__(expr)`. It looks up the generator currently running on this
// goroutine's thread and hands the value across the coroutine channel,
// blocking until Advance is called again.
func yieldBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value = starlark.None
	if err := starlark.UnpackArgs("__yield__", args, kwargs, "value?", &v); err != nil {
		return nil, err
	}
	g, _ := thread.Local(generatorLocalKey).(*generator)
	if g == nil {
		return nil, fmt.Errorf("yield used outside a generator fixture")
	}
	g.out <- genStep{value: v}
	<-g.resume
	return starlark.None, nil
}
