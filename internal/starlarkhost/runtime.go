package starlarkhost

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"

	"go.starlark.net/starlark"
)

// Runtime implements kruntime.Runtime over go.starlark.net, a deterministic
// dialect standing in for the embedded interpreter: module-level code runs
// once per dotted path and its globals are cached, exactly like Python's
// own module cache, so a fixture and the test that depends on it see the
// same module-level state.
//
// Runtime is not safe for concurrent use by multiple goroutines at once;
// per kruntime.Runtime's contract, a worker process drives exactly one
// goroutine through it at a time.
type Runtime struct {
	cwd kpath.Path

	mu    sync.Mutex
	cache map[string]*moduleEntry

	// snap is the active snapshot scope, set by EnterSnapshotScope for
	// the duration of one test's Call and read by the karva.assert_*
	// builtins. Set only from the single goroutine driving this Runtime.
	snap *snapshotScope
}

type moduleEntry struct {
	globals starlark.StringDict
	err     error
}

// NewRuntime returns a Runtime that resolves dotted module paths relative
// to cwd.
func NewRuntime(cwd kpath.Path) *Runtime {
	return &Runtime{cwd: cwd, cache: make(map[string]*moduleEntry)}
}

// Import implements kruntime.Runtime. It resolves modulePath back to a
// file via kpath.ModulePathFromString/ToPath, since discover.Discoverer
// only ever supplies the dotted name, never the file it came from.
func (r *Runtime) Import(modulePath string) (kruntime.Value, error) {
	r.mu.Lock()
	if e, ok := r.cache[modulePath]; ok {
		r.mu.Unlock()
		return e.globals, e.err
	}
	r.mu.Unlock()

	path := kpath.ModulePathFromString(modulePath).ToPath(r.cwd)
	source, err := os.ReadFile(path.String())
	if err != nil {
		// modulePath may name a package directory rather than a single
		// file; fall back to its __init__.py before giving up.
		pkgInit, initErr := kpath.New(strings.TrimSuffix(path.String(), ".py") + "/__init__.py")
		if initErr == nil {
			if src, readErr := os.ReadFile(pkgInit.String()); readErr == nil {
				path, source, err = pkgInit, src, nil
			}
		}
	}
	if err != nil {
		e := &moduleEntry{err: err}
		r.store(modulePath, e)
		return nil, err
	}

	globals, err := r.execFile(path, source)
	r.store(modulePath, &moduleEntry{globals: globals, err: err})
	return globals, err
}

func (r *Runtime) execFile(path kpath.Path, source []byte) (starlark.StringDict, error) {
	_, cleaned, diags := preprocess(source, path)
	if msg, bad := firstError(diags); bad {
		return nil, fmt.Errorf("parsing %s: %s", path, msg)
	}
	thread := &starlark.Thread{Name: path.String()}
	return starlark.ExecFile(thread, path.String(), cleaned, r.predeclared())
}

func firstError(diags []kparse.Diagnostic) (string, bool) {
	for _, d := range diags {
		if d.Severity == kparse.SeverityError {
			return d.Message, true
		}
	}
	return "", false
}

func (r *Runtime) store(k string, e *moduleEntry) {
	r.mu.Lock()
	r.cache[k] = e
	r.mu.Unlock()
}

// GetAttr implements kruntime.Runtime.
func (r *Runtime) GetAttr(obj kruntime.Value, name string) (kruntime.Value, bool) {
	globals, ok := obj.(starlark.StringDict)
	if !ok {
		return nil, false
	}
	v, ok := globals[name]
	return v, ok
}

// Call implements kruntime.Runtime.
func (r *Runtime) Call(fn kruntime.Callable, kwargs kruntime.Kwargs) (kruntime.Value, error) {
	sfn, ok := fn.(*starlark.Function)
	if !ok {
		return nil, &kruntime.Exception{Kind: kruntime.ExceptionOther, TypeName: "TypeError", Message: "value is not callable"}
	}
	if missing := missingRequired(sfn, kwargs); len(missing) > 0 {
		return nil, &kruntime.Exception{Kind: kruntime.ExceptionMissingArgument, MissingNames: missing}
	}
	skwargs, err := toStarlarkKwargs(kwargs)
	if err != nil {
		return nil, wrapException(err)
	}

	thread := &starlark.Thread{Name: sfn.Name()}
	v, err := starlark.Call(thread, sfn, nil, skwargs)
	if err != nil {
		return nil, wrapException(err)
	}
	return v, nil
}

// NewGenerator implements kruntime.Runtime. The function body does not
// start running until the first Advance call.
func (r *Runtime) NewGenerator(fn kruntime.Callable, kwargs kruntime.Kwargs) (kruntime.Generator, error) {
	sfn, ok := fn.(*starlark.Function)
	if !ok {
		return nil, &kruntime.Exception{Kind: kruntime.ExceptionOther, TypeName: "TypeError", Message: "value is not callable"}
	}
	if missing := missingRequired(sfn, kwargs); len(missing) > 0 {
		return nil, &kruntime.Exception{Kind: kruntime.ExceptionMissingArgument, MissingNames: missing}
	}
	skwargs, err := toStarlarkKwargs(kwargs)
	if err != nil {
		return nil, wrapException(err)
	}

	g := newGenerator()
	g.run = func() {
		thread := &starlark.Thread{Name: sfn.Name()}
		thread.SetLocal(generatorLocalKey, g)
		_, err := starlark.Call(thread, sfn, nil, skwargs)
		g.out <- genStep{done: true, err: err}
	}
	return g, nil
}

// Advance implements kruntime.Runtime.
func (r *Runtime) Advance(gen kruntime.Generator) (kruntime.AdvanceResult, error) {
	g, ok := gen.(*generator)
	if !ok {
		return kruntime.AdvanceResult{}, &kruntime.Exception{Kind: kruntime.ExceptionOther, TypeName: "TypeError", Message: "value is not a generator"}
	}
	if g.finished {
		return kruntime.AdvanceResult{Done: true}, nil
	}
	if !g.started {
		g.started = true
		go g.run()
	} else {
		g.resume <- struct{}{}
	}

	step := <-g.out
	if step.done {
		g.finished = true
		if step.err != nil {
			return kruntime.AdvanceResult{Done: true}, wrapException(step.err)
		}
		return kruntime.AdvanceResult{Done: true}, nil
	}
	return kruntime.AdvanceResult{Yielded: step.value, Done: false}, nil
}

// Display implements kruntime.Runtime.
func (r *Runtime) Display(v kruntime.Value) string {
	return display(v)
}
