package workercli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/rcache"
)

func writeTestFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunExitsOKWithNoFilesAssigned(t *testing.T) {
	cacheDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{"--cache-dir", cacheDir, "--run-hash", "r1", "--worker-id", "0"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("got exit %d, stderr=%s", code, stderr.String())
	}
}

func TestRunRequiresCacheDirRunHashWorkerID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{}, &stdout, &stderr)
	if code == 0 {
		t.Fatal("expected a non-zero exit with no required flags given")
	}
}

func TestRunExecutesPassingTestAndWritesCache(t *testing.T) {
	dir := t.TempDir()
	testFile := writeTestFile(t, dir, "test_math.py", "def test_add():\n    assert 1 + 1 == 2\n")

	cacheDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"--cache-dir", cacheDir, "--run-hash", "r1", "--worker-id", "0", testFile,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("got exit %d, stderr=%s", code, stderr.String())
	}

	agg, err := rcache.Aggregate(cacheDir, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Passed != 1 || agg.Totals.Failed != 0 {
		t.Fatalf("got totals %+v", agg.Totals)
	}
}

func TestRunReportsFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	testFile := writeTestFile(t, dir, "test_math.py", "def test_add():\n    assert 1 + 1 == 3\n")

	cacheDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"--cache-dir", cacheDir, "--run-hash", "r1", "--worker-id", "0", testFile,
	}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("got exit %d, want 1 (test failure)", code)
	}

	agg, err := rcache.Aggregate(cacheDir, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Failed != 1 {
		t.Fatalf("got totals %+v", agg.Totals)
	}
}

func TestRunAppliesMatchFilter(t *testing.T) {
	dir := t.TempDir()
	testFile := writeTestFile(t, dir, "test_math.py", "def test_add():\n    assert 1 + 1 == 2\n\ndef test_sub():\n    assert 2 - 1 == 0\n")

	cacheDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{
		"--cache-dir", cacheDir, "--run-hash", "r1", "--worker-id", "0",
		"--match", "test_add", testFile,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("got exit %d, stderr=%s", code, stderr.String())
	}

	agg, err := rcache.Aggregate(cacheDir, "r1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Passed != 1 {
		t.Fatalf("expected test_sub to be filtered out by --match, leaving only the passing test_add, got %+v", agg.Totals)
	}
}

func TestFixtureAndTestDiagsPartitionByCategoryPrefix(t *testing.T) {
	diags := []kparse.Diagnostic{
		{Category: "fixture-not-found", Message: "a"},
		{Category: "assertion-failed", Message: "b"},
		{Category: "fixture-teardown-error", Message: "c"},
	}
	fix := fixtureDiags(diags)
	test := testDiags(diags)
	if len(fix) != 2 || len(test) != 1 {
		t.Fatalf("got fixture=%d test=%d", len(fix), len(test))
	}
}
