package rcache

import (
	"path/filepath"
	"testing"
)

func TestSanitizeTestIDReplacesReservedChars(t *testing.T) {
	got := SanitizeTestID(`pkg/test_x.py::test_add[a/b]`)
	if got != "pkg_test_x.py__test_add[a_b]" {
		t.Fatalf("got %q", got)
	}
}

func TestWriterWriteTestRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTest("test_x::test_add", Stats{Passed: 1}, Duration{Ms: 42}); err != nil {
		t.Fatal(err)
	}

	agg, err := Aggregate(dir, "run1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Passed != 1 {
		t.Fatalf("got %+v", agg.Totals)
	}
	dur, ok := agg.Durations[SanitizeTestID("test_x::test_add")]
	if !ok || dur.Ms != 42 {
		t.Fatalf("got durations=%+v", agg.Durations)
	}
}

func TestAggregateSumsAcrossWorkersInOrder(t *testing.T) {
	dir := t.TempDir()
	w0, _ := NewWriter(dir, "run1", 0)
	w1, _ := NewWriter(dir, "run1", 1)
	_ = w0.WriteTest("test_a", Stats{Passed: 2}, Duration{Ms: 10})
	_ = w1.WriteTest("test_b", Stats{Failed: 1}, Duration{Ms: 20})
	_ = w0.AppendDiagnostics("from worker 0\n")
	_ = w1.AppendDiagnostics("from worker 1\n")

	agg, err := Aggregate(dir, "run1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Passed != 2 || agg.Totals.Failed != 1 {
		t.Fatalf("got %+v", agg.Totals)
	}
	if agg.Diagnostics != "from worker 0\nfrom worker 1\n" {
		t.Fatalf("got diagnostics in wrong order: %q", agg.Diagnostics)
	}
	if len(agg.MissingWorkers) != 0 {
		t.Fatalf("expected no missing workers, got %v", agg.MissingWorkers)
	}
}

func TestAggregateReportsMissingWorkerAsZeroContribution(t *testing.T) {
	dir := t.TempDir()
	w0, _ := NewWriter(dir, "run1", 0)
	_ = w0.WriteTest("test_a", Stats{Passed: 1}, Duration{Ms: 1})

	agg, err := Aggregate(dir, "run1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Totals.Passed != 1 {
		t.Fatalf("got %+v, want only worker 0's contribution", agg.Totals)
	}
	if len(agg.MissingWorkers) != 1 || agg.MissingWorkers[0] != 1 {
		t.Fatalf("got %v, want [1]", agg.MissingWorkers)
	}
}

func TestCleanupRemovesRunTree(t *testing.T) {
	dir := t.TempDir()
	w0, _ := NewWriter(dir, "run1", 0)
	_ = w0.WriteTest("test_a", Stats{Passed: 1}, Duration{Ms: 1})

	if err := Cleanup(dir, "run1"); err != nil {
		t.Fatal(err)
	}
	agg, err := Aggregate(dir, "run1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(agg.MissingWorkers) != 1 {
		t.Fatalf("expected worker 0 missing after cleanup, got %v", agg.MissingWorkers)
	}
	remaining, err := filepath.Glob(filepath.Join(RunDir(dir, "run1"), "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected run tree removed, found %v", remaining)
	}
}
