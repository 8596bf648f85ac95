package ktags

import (
	"testing"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

func testModule(t *testing.T) kpath.ModulePath {
	t.Helper()
	cwd := kpath.MustNew("/repo")
	mp, ok := kpath.NewModulePath(cwd.Join("test_foo.py"), cwd)
	if !ok {
		t.Fatal("expected ok")
	}
	return mp
}

func TestClassifyFixtureDecorator(t *testing.T) {
	mp := testModule(t)
	fn := &kparse.FunctionDef{
		Name: "val",
		Decorators: []kparse.Decorator{
			{
				LeafName: "fixture",
				FullName: "fixture",
				Kwargs: map[string]kparse.Expr{
					"scope":   {Kind: kparse.KindString, Str: "module"},
					"autouse": {Kind: kparse.KindBool, Bool: true},
				},
			},
		},
	}

	fixture, tags, diags := Classify(fn, mp, kpath.MustNew("/repo/test_foo.py"), "callable-val", nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if fixture == nil {
		t.Fatal("expected a fixture")
	}
	if fixture.Scope != ScopeModule {
		t.Fatalf("got scope %v, want module", fixture.Scope)
	}
	if !fixture.Autouse {
		t.Fatal("expected autouse")
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestClassifyInvalidScope(t *testing.T) {
	mp := testModule(t)
	fn := &kparse.FunctionDef{
		Name: "val",
		Decorators: []kparse.Decorator{
			{
				LeafName: "fixture",
				FullName: "fixture",
				Kwargs: map[string]kparse.Expr{
					"scope": {Kind: kparse.KindString, Str: "bogus"},
				},
			},
		},
	}
	fixture, _, diags := Classify(fn, mp, kpath.MustNew("/repo/test_foo.py"), "callable-val", nil)
	if fixture != nil {
		t.Fatal("expected fixture to be dropped")
	}
	if len(diags) != 1 || diags[0].Category != "invalid-fixture" {
		t.Fatalf("expected one invalid-fixture diagnostic, got %v", diags)
	}
}

func TestClassifyParametrize(t *testing.T) {
	mp := testModule(t)
	fn := &kparse.FunctionDef{
		Name: "test_add",
		Decorators: []kparse.Decorator{
			{
				LeafName: "parametrize",
				FullName: "tags.parametrize",
				Args: []kparse.Expr{
					{Kind: kparse.KindString, Str: "x"},
					{Kind: kparse.KindList, Elems: []kparse.Expr{
						{Kind: kparse.KindInt, Int: 1},
						{Kind: kparse.KindInt, Int: 2},
						{Kind: kparse.KindInt, Int: 3},
					}},
				},
			},
		},
	}

	fixture, tags, diags := Classify(fn, mp, kpath.MustNew("/repo/test_foo.py"), "callable-test_add", nil)
	if fixture != nil {
		t.Fatal("expected no fixture")
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(tags) != 1 || tags[0].Kind != TagParametrize {
		t.Fatalf("expected one parametrize tag, got %v", tags)
	}
	if len(tags[0].Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tags[0].Rows))
	}
	if got := tags.ParametrizeParamNames(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("got param names %v", got)
	}
}

func TestClassifySkipAndExpectFail(t *testing.T) {
	mp := testModule(t)
	fn := &kparse.FunctionDef{
		Name: "test_x",
		Decorators: []kparse.Decorator{
			{
				LeafName: "skip",
				FullName: "tags.skip",
				Kwargs: map[string]kparse.Expr{
					"reason": {Kind: kparse.KindString, Str: "flaky"},
				},
			},
		},
	}
	_, tags, _ := Classify(fn, mp, kpath.MustNew("/repo/test_foo.py"), "callable-test_x", nil)
	skip, ok := tags.Skip()
	if !ok {
		t.Fatal("expected a skip tag")
	}
	if !skip.Condition || skip.Reason != "flaky" {
		t.Fatalf("got %+v", skip)
	}
}

func TestClassifyCustomTag(t *testing.T) {
	mp := testModule(t)
	fn := &kparse.FunctionDef{
		Name: "test_x",
		Decorators: []kparse.Decorator{
			{LeafName: "slow", FullName: "tags.slow"},
		},
	}
	_, tags, _ := Classify(fn, mp, kpath.MustNew("/repo/test_foo.py"), "callable-test_x", nil)
	if len(tags) != 1 || tags[0].Kind != TagCustom || tags[0].CustomName != "slow" {
		t.Fatalf("got %v", tags)
	}
}
