package fixture

import (
	"fmt"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/normalize"
)

// Request is the object bound to a fixture or test parameter named
// "request": its only payload is the current fixture's param value, for
// request.param.
type Request struct {
	Param kruntime.Value
}

// scopeKey identifies one live instance of a scope: the scope kind plus,
// for ScopePackage, the directory of the conftest that owns it. Nested
// packages each get their own ScopePackage instance, so this is what lets
// an inner package's teardown avoid clearing an outer package's entries.
type scopeKey struct {
	scope ktags.FixtureScope
	owner string
}

// Executor runs NormalizedFixtures inside one worker, honoring scope-aware
// caching and LIFO finalizer teardown.
type Executor struct {
	rt         kruntime.Runtime
	cache      *Cache
	finalizers map[scopeKey][]*Finalizer
}

// New returns an Executor bound to a Runtime, with an empty cache.
func New(rt kruntime.Runtime) *Executor {
	return &Executor{
		rt:         rt,
		cache:      NewCache(),
		finalizers: make(map[scopeKey][]*Finalizer),
	}
}

// packageOwner returns the scopeKey owner for f: the directory of its
// defining file when f is package-scoped, empty for every other scope
// (which has only one live instance per run and needs no owner to
// disambiguate).
func packageOwner(f *normalize.NormalizedFixture) string {
	if f.Scope != ktags.ScopePackage {
		return ""
	}
	return f.Location.Path.Dir().String()
}

// Execute realizes a NormalizedFixture's value, recursing into its
// dependencies first. It returns the fixture value plus any diagnostics;
// a non-empty diagnostic slice (of severity Error) means the fixture
// could not be produced and dependents must fail.
func (e *Executor) Execute(f *normalize.NormalizedFixture) (kruntime.Value, []kparse.Diagnostic) {
	if cached, ok := e.cache.Get(f.SyntheticName); ok {
		return cached, nil
	}

	if len(f.MissingFixtures) > 0 {
		return nil, []kparse.Diagnostic{missingFixturesDiag(f.Location, f.SyntheticName, f.MissingFixtures)}
	}

	kwargs := make(kruntime.Kwargs, len(f.Dependencies)+1)
	for i, dep := range f.Dependencies {
		val, diags := e.Execute(dep)
		if len(diags) > 0 {
			return nil, diags
		}
		if i < len(f.DependencyNames) {
			kwargs[f.DependencyNames[i]] = val
		}
	}
	if f.UsesRequest {
		kwargs["request"] = Request{Param: f.Param}
	}

	value, diag := e.invoke(f, kwargs)
	if diag != nil {
		return nil, []kparse.Diagnostic{*diag}
	}

	e.cache.Set(f.SyntheticName, value, f.Scope, packageOwner(f))
	return value, nil
}

func (e *Executor) invoke(f *normalize.NormalizedFixture, kwargs kruntime.Kwargs) (kruntime.Value, *kparse.Diagnostic) {
	if !f.IsGenerator {
		value, err := e.rt.Call(f.Callable, kwargs)
		if err != nil {
			return nil, e.classifyFixtureError(f, err)
		}
		return value, nil
	}

	gen, err := e.rt.NewGenerator(f.Callable, kwargs)
	if err != nil {
		return nil, e.classifyFixtureError(f, err)
	}
	result, err := e.rt.Advance(gen)
	if err != nil {
		return nil, e.classifyFixtureError(f, err)
	}
	if result.Done {
		diag := fixtureErrorDiag(f.Location, fmt.Sprintf("fixture %s: generator completed without yielding a value", f.SyntheticName))
		return nil, &diag
	}
	key := scopeKey{scope: f.Scope, owner: packageOwner(f)}
	e.finalizers[key] = append(e.finalizers[key], &Finalizer{
		FixtureName: f.SyntheticName,
		Generator:   gen,
		Scope:       f.Scope,
	})
	return result.Yielded, nil
}

func (e *Executor) classifyFixtureError(f *normalize.NormalizedFixture, err error) *kparse.Diagnostic {
	exc, ok := e.rt.ClassifyException(err)
	if !ok {
		diag := fixtureErrorDiag(f.Location, fmt.Sprintf("fixture %s: %v", f.SyntheticName, err))
		return &diag
	}
	if exc.Kind == kruntime.ExceptionMissingArgument {
		diag := missingFixturesDiag(f.Location, f.SyntheticName, exc.MissingNames)
		return &diag
	}
	diag := kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "fixture-error",
		Message:  fmt.Sprintf("fixture %s raised: %s\n%s", f.SyntheticName, exc.Message, exc.Traceback),
		Location: f.Location,
	}
	return &diag
}

// InstallAutouse executes every autouse fixture at scope or any scope
// nested inside it that is not already cached, for its side effects.
func (e *Executor) InstallAutouse(scope ktags.FixtureScope, fixtures []*normalize.NormalizedFixture) []kparse.Diagnostic {
	var diags []kparse.Diagnostic
	for _, f := range fixtures {
		if !f.Autouse || f.Scope.Rank() > scope.Rank() {
			continue
		}
		if _, ok := e.cache.Get(f.SyntheticName); ok {
			continue
		}
		if _, ds := e.Execute(f); len(ds) > 0 {
			diags = append(diags, ds...)
		}
	}
	return diags
}

// Teardown runs every finalizer queued at scope (and, for ScopePackage,
// owned by owner) in LIFO order, then clears every cache entry recorded
// at that same scope/owner pair. owner is ignored for every scope other
// than ScopePackage, which has only one live instance per run.
func (e *Executor) Teardown(scope ktags.FixtureScope, owner string) []kparse.Diagnostic {
	if scope != ktags.ScopePackage {
		owner = ""
	}
	var diags []kparse.Diagnostic
	key := scopeKey{scope: scope, owner: owner}
	stack := e.finalizers[key]
	for i := len(stack) - 1; i >= 0; i-- {
		fin := stack[i]
		result, err := e.rt.Advance(fin.Generator)
		switch {
		case err != nil:
			diags = append(diags, kparse.Diagnostic{
				Severity: kparse.SeverityWarning,
				Category: "fixture-teardown",
				Message:  fmt.Sprintf("fixture %s: teardown error: %v", fin.FixtureName, err),
			})
		case !result.Done:
			diags = append(diags, kparse.Diagnostic{
				Severity: kparse.SeverityWarning,
				Category: "fixture-teardown",
				Message:  fmt.Sprintf("fixture %s: generator yielded a second time during teardown", fin.FixtureName),
			})
		}
	}
	delete(e.finalizers, key)
	e.cache.ClearScope(scope, owner)
	return diags
}

func missingFixturesDiag(loc kpath.Location, name string, missing []string) kparse.Diagnostic {
	return kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "fixture-not-found",
		Message:  fmt.Sprintf("%s: missing fixtures %v", name, missing),
		Location: loc,
	}
}

func fixtureErrorDiag(loc kpath.Location, msg string) kparse.Diagnostic {
	return kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "fixture-error",
		Message:  msg,
		Location: loc,
	}
}
