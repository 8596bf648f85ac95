package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuildArgsOrdersCacheDirRunHashWorkerIDThenFlagsThenPaths(t *testing.T) {
	args := buildArgs("/cache", "run1", Partition{WorkerID: 2, Paths: []string{"a.py", "b.py"}, Flags: []string{"--fail-fast"}})
	want := []string{"--cache-dir", "/cache", "--run-hash", "run1", "--worker-id", "2", "--fail-fast", "a.py", "b.py"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v, want %v", args, want)
		}
	}
}

// writeWorkerScript writes a tiny shell script standing in for
// karva-worker: it ignores its arguments, sleeps for sleepSeconds, and
// exits 0 without writing anything into the cache directory.
func writeWorkerScript(t *testing.T, dir string, sleepSeconds string) string {
	t.Helper()
	path := filepath.Join(dir, "fakeworker.sh")
	script := "#!/bin/sh\nsleep " + sleepSeconds + "\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWaitsForAllChildrenAndAggregates(t *testing.T) {
	cacheDir := t.TempDir()
	worker := writeWorkerScript(t, t.TempDir(), "0")

	o := New(cacheDir, "run1")
	partitions := []Partition{
		{WorkerID: 0, Paths: []string{"a.py"}},
		{WorkerID: 1, Paths: []string{"b.py"}},
	}
	shutdown := make(chan struct{})

	agg, aborted, err := o.Run(worker, partitions, shutdown)
	if err != nil {
		t.Fatal(err)
	}
	if aborted {
		t.Fatalf("expected aborted=false")
	}
	// Neither fake worker actually wrote into the cache, so every worker
	// directory is reported missing; that's still a clean aggregation.
	if len(agg.MissingWorkers) != 2 {
		t.Fatalf("got %v", agg.MissingWorkers)
	}
}

func TestRunSkipsEmptyPartitions(t *testing.T) {
	cacheDir := t.TempDir()
	worker := writeWorkerScript(t, t.TempDir(), "0")

	o := New(cacheDir, "run1")
	partitions := []Partition{
		{WorkerID: 0, Paths: []string{"a.py"}},
		{WorkerID: 1, Paths: nil},
	}
	_, _, err := o.Run(worker, partitions, make(chan struct{}))
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunHonorsShutdownAndKillsRemainingChildren(t *testing.T) {
	cacheDir := t.TempDir()
	worker := writeWorkerScript(t, t.TempDir(), "5")

	o := New(cacheDir, "run1")
	partitions := []Partition{{WorkerID: 0, Paths: []string{"a.py"}}}
	shutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(30 * time.Millisecond)
		shutdown <- struct{}{}
	}()

	start := time.Now()
	_, aborted, err := o.Run(worker, partitions, shutdown)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if !aborted {
		t.Fatalf("expected aborted=true")
	}
	if elapsed > 3*time.Second {
		t.Fatalf("Run took %s, expected shutdown to kill the 5s sleep quickly", elapsed)
	}
}

func TestInstallSignalHandlerIsIdempotent(t *testing.T) {
	ch1 := InstallSignalHandler()
	ch2 := InstallSignalHandler()
	if ch1 != ch2 {
		t.Fatalf("expected the same channel from repeated installs")
	}
}
