package fixture

import (
	"reflect"
	"testing"

	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/kruntimetest"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/normalize"
)

func TestExecutePlainFixtureCachesByScope(t *testing.T) {
	rt := kruntimetest.New()
	calls := 0
	callable := rt.RegisterFunc("val", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		calls++
		return 7, nil
	})

	nf := &normalize.NormalizedFixture{SyntheticName: "val", Scope: ktags.ScopeModule, Callable: callable}
	e := New(rt)

	v1, diags := e.Execute(nf)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if v1 != 7 {
		t.Fatalf("got %v, want 7", v1)
	}

	v2, diags := e.Execute(nf)
	if len(diags) != 0 || v2 != 7 {
		t.Fatalf("second Execute: got (%v, %v)", v2, diags)
	}
	if calls != 1 {
		t.Fatalf("fixture callable invoked %d times, want 1 (cache hit expected)", calls)
	}
}

func TestExecuteMissingFixturePropagatesDiagnostic(t *testing.T) {
	rt := kruntimetest.New()
	e := New(rt)

	nf := &normalize.NormalizedFixture{SyntheticName: "val", MissingFixtures: []string{"other"}}
	_, diags := e.Execute(nf)
	if len(diags) != 1 || diags[0].Category != "fixture-not-found" {
		t.Fatalf("got %v, want one fixture-not-found diagnostic", diags)
	}
}

func TestExecuteBindsDependencyKwargsByName(t *testing.T) {
	rt := kruntimetest.New()
	base := rt.RegisterFunc("base", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		return 3, nil
	})
	var seen kruntime.Value
	derived := rt.RegisterFunc("derived", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		seen = kwargs["base"]
		return seen.(int) * 2, nil
	})

	baseNF := &normalize.NormalizedFixture{SyntheticName: "base", Scope: ktags.ScopeFunction, Callable: base}
	derivedNF := &normalize.NormalizedFixture{
		SyntheticName:   "derived",
		Scope:           ktags.ScopeFunction,
		Callable:        derived,
		Dependencies:    []*normalize.NormalizedFixture{baseNF},
		DependencyNames: []string{"base"},
	}

	e := New(rt)
	v, diags := e.Execute(derivedNF)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if v != 6 {
		t.Fatalf("got %v, want 6", v)
	}
	if seen != 3 {
		t.Fatalf("derived fixture saw base=%v, want 3", seen)
	}
}

func TestExecuteInjectsRequestParam(t *testing.T) {
	rt := kruntimetest.New()
	var gotParam kruntime.Value
	callable := rt.RegisterFunc("val", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		gotParam = kwargs["request"].(Request).Param
		return nil, nil
	})

	nf := &normalize.NormalizedFixture{
		SyntheticName: "val[1]",
		HasParam:      true,
		Param:         1,
		Scope:         ktags.ScopeFunction,
		Callable:      callable,
		UsesRequest:   true,
	}

	e := New(rt)
	if _, diags := e.Execute(nf); len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if gotParam != 1 {
		t.Fatalf("got request.param=%v, want 1", gotParam)
	}
}

// TestTeardownOrderingMatchesNestedGeneratorScopes reproduces the
// module-then-function generator fixture interleaving: a module-scope
// fixture m wraps a function-scope fixture f used by two tests, so f must
// run its setup/teardown once per test while m only sets up once and
// tears down once, after both tests finish.
func TestTeardownOrderingMatchesNestedGeneratorScopes(t *testing.T) {
	var order []string
	rt := kruntimetest.New()

	mCallable := rt.RegisterGenerator("m", func(kwargs kruntime.Kwargs) *kruntimetest.GeneratorScript {
		return &kruntimetest.GeneratorScript{
			Yields: []func() kruntime.Value{
				func() kruntime.Value { order = append(order, "m+"); return "m-value" },
			},
			After: func() { order = append(order, "m-") },
		}
	})
	fCallable := rt.RegisterGenerator("f", func(kwargs kruntime.Kwargs) *kruntimetest.GeneratorScript {
		return &kruntimetest.GeneratorScript{
			Yields: []func() kruntime.Value{
				func() kruntime.Value { order = append(order, "f+"); return kwargs["m"] },
			},
			After: func() { order = append(order, "f-") },
		}
	})

	mNF := &normalize.NormalizedFixture{
		SyntheticName: "m",
		Scope:         ktags.ScopeModule,
		IsGenerator:   true,
		Callable:      mCallable,
	}
	newF := func() *normalize.NormalizedFixture {
		return &normalize.NormalizedFixture{
			SyntheticName:   "f",
			Scope:           ktags.ScopeFunction,
			IsGenerator:     true,
			Callable:        fCallable,
			Dependencies:    []*normalize.NormalizedFixture{mNF},
			DependencyNames: []string{"m"},
		}
	}

	e := New(rt)

	// test_a(f)
	if _, diags := e.Execute(newF()); len(diags) != 0 {
		t.Fatalf("test_a: unexpected diagnostics: %v", diags)
	}
	if diags := e.Teardown(ktags.ScopeFunction, ""); len(diags) != 0 {
		t.Fatalf("test_a teardown: unexpected diagnostics: %v", diags)
	}

	// test_b(f): m is still cached at module scope, only f re-executes.
	if _, diags := e.Execute(newF()); len(diags) != 0 {
		t.Fatalf("test_b: unexpected diagnostics: %v", diags)
	}
	if diags := e.Teardown(ktags.ScopeFunction, ""); len(diags) != 0 {
		t.Fatalf("test_b teardown: unexpected diagnostics: %v", diags)
	}

	// Module exit: m tears down.
	if diags := e.Teardown(ktags.ScopeModule, ""); len(diags) != 0 {
		t.Fatalf("module teardown: unexpected diagnostics: %v", diags)
	}

	want := []string{"m+", "f+", "f-", "f+", "f-", "m-"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
}

func TestInstallAutouseSkipsNonAutouseAndAlreadyCached(t *testing.T) {
	rt := kruntimetest.New()
	calls := 0
	callable := rt.RegisterFunc("setup", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		calls++
		return nil, nil
	})
	other := rt.RegisterFunc("other", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		t.Fatalf("non-autouse fixture must not run via InstallAutouse")
		return nil, nil
	})

	autouse := &normalize.NormalizedFixture{SyntheticName: "setup", Scope: ktags.ScopeFunction, Autouse: true, Callable: callable}
	plain := &normalize.NormalizedFixture{SyntheticName: "other", Scope: ktags.ScopeFunction, Autouse: false, Callable: other}

	e := New(rt)
	if diags := e.InstallAutouse(ktags.ScopeFunction, []*normalize.NormalizedFixture{autouse, plain}); len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if diags := e.InstallAutouse(ktags.ScopeFunction, []*normalize.NormalizedFixture{autouse, plain}); len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if calls != 1 {
		t.Fatalf("autouse fixture invoked %d times, want 1 (second call should hit cache)", calls)
	}
}

// TestChildPackageTeardownRetainsAncestorPackageFixture reproduces two
// sibling packages sharing a package-scope fixture defined in an ancestor
// conftest: the fixture must execute once and survive until the ancestor's
// own package-scope teardown, not either child's.
func TestChildPackageTeardownRetainsAncestorPackageFixture(t *testing.T) {
	rt := kruntimetest.New()
	calls := 0
	callable := rt.RegisterFunc("db", func(kwargs kruntime.Kwargs) (kruntime.Value, error) {
		calls++
		return calls, nil
	})

	parentDir := kpath.MustNew("/repo")
	sharedFixture := func() *normalize.NormalizedFixture {
		return &normalize.NormalizedFixture{
			SyntheticName: "db",
			Scope:         ktags.ScopePackage,
			Callable:      callable,
			Location:      kpath.Location{Path: parentDir.Join("conftest.py")},
		}
	}

	e := New(rt)

	// Sibling package "a" resolves and executes the ancestor's fixture.
	if _, diags := e.Execute(sharedFixture()); len(diags) != 0 {
		t.Fatalf("package a: unexpected diagnostics: %v", diags)
	}
	if diags := e.Teardown(ktags.ScopePackage, parentDir.Join("a").String()); len(diags) != 0 {
		t.Fatalf("package a teardown: unexpected diagnostics: %v", diags)
	}

	// Sibling package "b" reuses the still-cached value: no re-execution.
	if v, diags := e.Execute(sharedFixture()); len(diags) != 0 || v != 1 {
		t.Fatalf("package b: got (%v, %v), want (1, nil)", v, diags)
	}
	if diags := e.Teardown(ktags.ScopePackage, parentDir.Join("b").String()); len(diags) != 0 {
		t.Fatalf("package b teardown: unexpected diagnostics: %v", diags)
	}
	if calls != 1 {
		t.Fatalf("fixture invoked %d times, want 1: a sibling's teardown must not have cleared it early", calls)
	}

	// Only the ancestor's own teardown clears it.
	if diags := e.Teardown(ktags.ScopePackage, parentDir.String()); len(diags) != 0 {
		t.Fatalf("ancestor teardown: unexpected diagnostics: %v", diags)
	}
	if _, ok := e.cache.Get("db"); ok {
		t.Fatalf("fixture should be cleared once the ancestor's own package scope tears down")
	}
}
