package normalize

import (
	"testing"

	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

func TestNormalizeParametrizeTimesFixture(t *testing.T) {
	cwd := kpath.MustNew("/repo")
	file := cwd.Join("test_add.py")
	mp, _ := kpath.NewModulePath(file, cwd)

	valFixture := &ktags.DiscoveredFixture{
		Name:  kpath.QualifiedFunctionName{Module: mp, Function: "val"},
		Scope: ktags.ScopeFunction,
	}
	test := &ktags.DiscoveredTest{
		Name:       kpath.QualifiedFunctionName{Module: mp, Function: "test_add"},
		ParamNames: []string{"x", "val"},
		Tags: ktags.Tags{{
			Kind:     ktags.TagParametrize,
			ArgNames: []string{"x"},
			Rows: [][]kruntime.Value{
				{int64(1)}, {int64(2)}, {int64(3)},
			},
		}},
	}

	mod := &discover.DiscoveredModule{
		Path:       file,
		ModulePath: mp,
		Type:       discover.ModuleTest,
		Fixtures:   []*ktags.DiscoveredFixture{valFixture},
		Tests:      []*ktags.DiscoveredTest{test},
	}

	pkg := discover.NewPackage(cwd)
	pkg.Insert(mod)

	n := New()
	tests, diags := n.Normalize(pkg)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(tests) != 3 {
		t.Fatalf("expected 3 normalized tests, got %d", len(tests))
	}

	want := map[string]bool{"test_add[x=1]": true, "test_add[x=2]": true, "test_add[x=3]": true}
	for _, nt := range tests {
		if !want[nt.DisplayName] {
			t.Errorf("unexpected display name %q", nt.DisplayName)
		}
		delete(want, nt.DisplayName)
	}
	if len(want) != 0 {
		t.Fatalf("missing display names: %v", want)
	}
}

func TestNormalizeMissingFixture(t *testing.T) {
	cwd := kpath.MustNew("/repo")
	file := cwd.Join("test_x.py")
	mp, _ := kpath.NewModulePath(file, cwd)

	test := &ktags.DiscoveredTest{
		Name:       kpath.QualifiedFunctionName{Module: mp, Function: "test_x"},
		ParamNames: []string{"missing"},
	}
	mod := &discover.DiscoveredModule{Path: file, ModulePath: mp, Type: discover.ModuleTest, Tests: []*ktags.DiscoveredTest{test}}
	pkg := discover.NewPackage(cwd)
	pkg.Insert(mod)

	n := New()
	tests, _ := n.Normalize(pkg)
	if len(tests) != 1 {
		t.Fatalf("expected 1 normalized test, got %d", len(tests))
	}
	if len(tests[0].MissingFixtures) != 1 || tests[0].MissingFixtures[0] != "missing" {
		t.Fatalf("expected missing fixture 'missing', got %v", tests[0].MissingFixtures)
	}
}

func TestNormalizeEmptyParametrizeRowYieldsZeroTests(t *testing.T) {
	cwd := kpath.MustNew("/repo")
	file := cwd.Join("test_x.py")
	mp, _ := kpath.NewModulePath(file, cwd)

	test := &ktags.DiscoveredTest{
		Name:       kpath.QualifiedFunctionName{Module: mp, Function: "test_x"},
		ParamNames: []string{"x"},
		Tags: ktags.Tags{{
			Kind:     ktags.TagParametrize,
			ArgNames: []string{"x"},
			Rows:     nil,
		}},
	}
	mod := &discover.DiscoveredModule{Path: file, ModulePath: mp, Type: discover.ModuleTest, Tests: []*ktags.DiscoveredTest{test}}
	pkg := discover.NewPackage(cwd)
	pkg.Insert(mod)

	n := New()
	tests, _ := n.Normalize(pkg)
	if len(tests) != 0 {
		t.Fatalf("expected 0 normalized tests for empty parametrize rows, got %d", len(tests))
	}
}

func TestNormalizeConftestFixtureVisibleToChildPackage(t *testing.T) {
	cwd := kpath.MustNew("/repo")
	conftestFile := cwd.Join("conftest.py")
	conftestMP, _ := kpath.NewModulePath(conftestFile, cwd)
	sharedFixture := &ktags.DiscoveredFixture{
		Name:  kpath.QualifiedFunctionName{Module: conftestMP, Function: "shared"},
		Scope: ktags.ScopeSession,
	}
	conftestMod := &discover.DiscoveredModule{
		Path: conftestFile, ModulePath: conftestMP, Type: discover.ModuleConfiguration,
		Fixtures: []*ktags.DiscoveredFixture{sharedFixture},
	}

	testFile := cwd.Join("sub", "test_x.py")
	testMP, _ := kpath.NewModulePath(testFile, cwd)
	test := &ktags.DiscoveredTest{
		Name:       kpath.QualifiedFunctionName{Module: testMP, Function: "test_x"},
		ParamNames: []string{"shared"},
	}
	testMod := &discover.DiscoveredModule{Path: testFile, ModulePath: testMP, Type: discover.ModuleTest, Tests: []*ktags.DiscoveredTest{test}}

	pkg := discover.NewPackage(cwd)
	pkg.Insert(conftestMod)
	pkg.Insert(testMod)

	n := New()
	tests, diags := n.Normalize(pkg)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(tests) != 1 {
		t.Fatalf("expected 1 test, got %d", len(tests))
	}
	if len(tests[0].MissingFixtures) != 0 {
		t.Fatalf("expected shared fixture to resolve via conftest, got missing %v", tests[0].MissingFixtures)
	}
}
