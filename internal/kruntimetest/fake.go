// Package kruntimetest provides a hand-written fake kruntime.Runtime so
// internal/fixture, internal/normalize, and internal/runner can be unit
// tested without a real interpreter. It is imported only from _test.go
// files.
package kruntimetest

import (
	"fmt"

	"github.com/karvarun/karva/internal/kruntime"
)

// Func is a Go closure standing in for a user-defined test or fixture
// function. kwargs carries the bound dependency/parameter values.
type Func func(kwargs kruntime.Kwargs) (kruntime.Value, error)

// GeneratorFunc builds a GeneratorScript for one invocation of a fake
// generator callable, given its bound kwargs.
type GeneratorFunc func(kwargs kruntime.Kwargs) *GeneratorScript

// GeneratorScript models a generator body as a sequence of yield points
// plus optional teardown code. Each Yields entry runs (for its side
// effects, e.g. appending to a shared order slice) exactly when Advance
// reaches it — not eagerly at NewGenerator time — so tests can observe
// interleaved before-yield/after-yield ordering across fixtures. After is
// run once Yields is exhausted and Advance is called one further time,
// modeling the code after the generator's last yield before it returns.
type GeneratorScript struct {
	Yields []func() kruntime.Value
	After  func()
}

// Runtime is a fake kruntime.Runtime backed by Go maps and closures.
// Callables are registered by name and referenced as kruntime.Callable
// values of type string.
type Runtime struct {
	funcs      map[string]Func
	generators map[string]GeneratorFunc
	modules    map[string]kruntime.Value

	activeGens map[*genState]struct{}
}

type genState struct {
	script *GeneratorScript
	pos    int
	after  bool
}

// New returns an empty fake Runtime.
func New() *Runtime {
	return &Runtime{
		funcs:      make(map[string]Func),
		generators: make(map[string]GeneratorFunc),
		modules:    make(map[string]kruntime.Value),
		activeGens: make(map[*genState]struct{}),
	}
}

// RegisterFunc registers a plain (non-generator) callable under name.
func (r *Runtime) RegisterFunc(name string, fn Func) kruntime.Callable {
	r.funcs[name] = fn
	return name
}

// RegisterGenerator registers a generator callable under name: each
// NewGenerator call builds a fresh GeneratorScript from fn, which Advance
// then steps through one yield at a time, reporting Done (after running
// After) once the yields are exhausted.
func (r *Runtime) RegisterGenerator(name string, fn GeneratorFunc) kruntime.Callable {
	r.generators[name] = fn
	return name
}

// RegisterModule registers an importable module value under a dotted path.
func (r *Runtime) RegisterModule(path string, attrs map[string]kruntime.Value) {
	r.modules[path] = attrs
}

func (r *Runtime) Import(modulePath string) (kruntime.Value, error) {
	m, ok := r.modules[modulePath]
	if !ok {
		return nil, fmt.Errorf("fake runtime: no module %q registered", modulePath)
	}
	return m, nil
}

func (r *Runtime) GetAttr(obj kruntime.Value, name string) (kruntime.Value, bool) {
	attrs, ok := obj.(map[string]kruntime.Value)
	if !ok {
		return nil, false
	}
	v, ok := attrs[name]
	return v, ok
}

func (r *Runtime) Call(fn kruntime.Callable, kwargs kruntime.Kwargs) (kruntime.Value, error) {
	name, ok := fn.(string)
	if !ok {
		return nil, fmt.Errorf("fake runtime: callable is not a registered name")
	}
	f, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("fake runtime: no function %q registered", name)
	}
	return f(kwargs)
}

func (r *Runtime) NewGenerator(fn kruntime.Callable, kwargs kruntime.Kwargs) (kruntime.Generator, error) {
	name, ok := fn.(string)
	if !ok {
		return nil, fmt.Errorf("fake runtime: callable is not a registered name")
	}
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("fake runtime: no generator %q registered", name)
	}
	state := &genState{script: g(kwargs)}
	r.activeGens[state] = struct{}{}
	return state, nil
}

func (r *Runtime) Advance(gen kruntime.Generator) (kruntime.AdvanceResult, error) {
	state, ok := gen.(*genState)
	if !ok {
		return kruntime.AdvanceResult{}, fmt.Errorf("fake runtime: not a generator handle")
	}
	if state.pos < len(state.script.Yields) {
		v := state.script.Yields[state.pos]()
		state.pos++
		return kruntime.AdvanceResult{Yielded: v, Done: false}, nil
	}
	if !state.after {
		state.after = true
		if state.script.After != nil {
			state.script.After()
		}
	}
	return kruntime.AdvanceResult{Done: true}, nil
}

func (r *Runtime) ClassifyException(err error) (*kruntime.Exception, bool) {
	exc, ok := err.(*kruntime.Exception)
	return exc, ok
}

func (r *Runtime) Display(v kruntime.Value) string {
	return fmt.Sprintf("%v", v)
}

var _ kruntime.Runtime = (*Runtime)(nil)
