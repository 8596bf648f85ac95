package starlarkhost

import (
	"testing"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

func TestParserParseExtractsFunctionsAndParams(t *testing.T) {
	src := []byte(`@fixture()
def db(request):
    return 1


def test_uses_db(db, other):
    assert db == 1
`)
	path := kpath.MustNew("/proj/test_sample.py")
	p := NewParser()
	mod, diags := p.Parse(src, path)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if len(mod.Functions) != 2 {
		t.Fatalf("want 2 functions, got %d", len(mod.Functions))
	}

	db := mod.Functions[0]
	if db.Name != "db" {
		t.Fatalf("db.Name = %q", db.Name)
	}
	if len(db.Params) != 1 || db.Params[0].Name != "request" {
		t.Fatalf("db.Params = %+v", db.Params)
	}
	if len(db.Decorators) != 1 || db.Decorators[0].LeafName != "fixture" {
		t.Fatalf("db.Decorators = %+v", db.Decorators)
	}
	if db.Range.StartLine != 2 {
		t.Fatalf("db.Range.StartLine = %d, want 2", db.Range.StartLine)
	}

	test := mod.Functions[1]
	if test.Name != "test_uses_db" {
		t.Fatalf("test.Name = %q", test.Name)
	}
	if len(test.Params) != 2 || test.Params[0].Name != "db" || test.Params[1].Name != "other" {
		t.Fatalf("test.Params = %+v", test.Params)
	}
	if test.IsGenerator {
		t.Fatal("test_uses_db is not a generator")
	}
}

func TestParserParseDetectsGenerator(t *testing.T) {
	src := []byte(`def conn():
    c = 1
    yield c
`)
	path := kpath.MustNew("/proj/conftest.py")
	p := NewParser()
	mod, diags := p.Parse(src, path)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if len(mod.Functions) != 1 || !mod.Functions[0].IsGenerator {
		t.Fatalf("mod.Functions = %+v", mod.Functions)
	}
}

func TestParserParseReturnsErrorDiagnosticOnSyntaxError(t *testing.T) {
	src := []byte("def broken(:\n    pass\n")
	path := kpath.MustNew("/proj/test_broken.py")
	p := NewParser()
	mod, diags := p.Parse(src, path)
	if mod != nil {
		t.Fatal("expected a nil module on a syntax error")
	}
	found := false
	for _, d := range diags {
		if d.Severity == kparse.SeverityError && d.Category == "invalid-module" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an invalid-module error diagnostic, got %+v", diags)
	}
}
