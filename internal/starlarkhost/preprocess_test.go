package starlarkhost

import (
	"strings"
	"testing"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

func TestPreprocessFindsDecoratorsAndParams(t *testing.T) {
	src := []byte(`@fixture(scope="module")
def db():
    return 1


def test_uses_db(db):
    assert db == 1
`)
	path := kpath.MustNew("/proj/test_sample.py")
	funcs, cleaned, diags := preprocess(src, path)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}
	if len(funcs) != 2 {
		t.Fatalf("want 2 functions, got %d: %+v", len(funcs), funcs)
	}
	if funcs[0].name != "db" {
		t.Fatalf("funcs[0].name = %q", funcs[0].name)
	}
	if len(funcs[0].decorators) != 1 || funcs[0].decorators[0].LeafName != "fixture" {
		t.Fatalf("funcs[0].decorators = %+v", funcs[0].decorators)
	}
	if funcs[1].name != "test_uses_db" {
		t.Fatalf("funcs[1].name = %q", funcs[1].name)
	}
	if !strings.Contains(string(cleaned), "__assert__(db == 1)") {
		t.Fatalf("assert not rewritten, cleaned=%q", cleaned)
	}
	if strings.Contains(string(cleaned), "@fixture") {
		t.Fatalf("decorator line not blanked, cleaned=%q", cleaned)
	}
	// Blanking a decorator line must not change the line count, since
	// later byte offsets are computed against the original source.
	if strings.Count(string(src), "\n") != strings.Count(string(cleaned), "\n") {
		t.Fatalf("line count changed by preprocessing")
	}
}

func TestPreprocessDetectsGeneratorFixtures(t *testing.T) {
	src := []byte(`@fixture()
def conn():
    c = open_conn()
    yield c
    c.close()
`)
	path := kpath.MustNew("/proj/conftest.py")
	funcs, cleaned, _ := preprocess(src, path)
	if len(funcs) != 1 || !funcs[0].isGenerator {
		t.Fatalf("expected a generator fixture, got %+v", funcs)
	}
	if !strings.Contains(string(cleaned), "__yield__(c)") {
		t.Fatalf("yield not rewritten, cleaned=%q", cleaned)
	}
}

func TestPreprocessAssertWithMessage(t *testing.T) {
	src := []byte("def test_thing():\n    assert 1 == 2, \"nope\"\n")
	path := kpath.MustNew("/proj/test_sample.py")
	_, cleaned, _ := preprocess(src, path)
	if !strings.Contains(string(cleaned), `__assert__(1 == 2, "nope")`) {
		t.Fatalf("cleaned=%q", cleaned)
	}
}

func TestPreprocessOrphanDecoratorWarns(t *testing.T) {
	src := []byte("@fixture()\nx = 1\n")
	path := kpath.MustNew("/proj/test_sample.py")
	_, _, diags := preprocess(src, path)
	if len(diags) != 1 || diags[0].Severity != kparse.SeverityWarning {
		t.Fatalf("expected one warning diagnostic, got %+v", diags)
	}
}

func TestSplitTopLevelCommaIgnoresNestedCommas(t *testing.T) {
	expr, msg, ok := splitTopLevelComma(`foo(1, 2) == bar, "message, with comma"`)
	if !ok {
		t.Fatal("expected a top-level comma split")
	}
	if expr != "foo(1, 2) == bar" {
		t.Errorf("expr = %q", expr)
	}
	if msg != `"message, with comma"` {
		t.Errorf("msg = %q", msg)
	}
}
