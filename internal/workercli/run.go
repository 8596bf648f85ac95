// Package workercli implements the karva-worker binary: it discovers a
// fixed slice of test files handed to it by the orchestrator, runs them
// through internal/runner, and writes results into its own worker-<id>
// slice of the shared result cache.
package workercli

import (
	"flag"
	"io"
	"strings"
	"time"

	"github.com/karvarun/karva/internal/diagnostic"
	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/kcli"
	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/rcache"
	"github.com/karvarun/karva/internal/runner"
	"github.com/karvarun/karva/internal/starlarkhost"
	"github.com/karvarun/karva/internal/testfilter"
)

// Run parses args, executes the assigned test files, and returns the
// process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	var (
		cacheDir           string
		runHash            string
		workerID           int
		verboseV           bool
		verboseVV          bool
		verboseVVV         bool
		failFast           bool
		outputFormat       string
		snapshotUpdate     bool
		retry              int
		tryImportFixtures  bool
		testPrefix         string
		respectIgnoreFiles bool
		tagExprs           kcli.StringSlice
		matchPatterns      kcli.StringSlice
	)

	fs := kcli.NewFlagSet("karva-worker", stderr)
	fs.StringVar(&cacheDir, "cache-dir", "", "result cache root (required)")
	fs.StringVar(&runHash, "run-hash", "", "run identifier (required)")
	fs.IntVar(&workerID, "worker-id", -1, "this worker's index (required)")
	fs.BoolVar(&verboseV, "v", false, "verbose")
	fs.BoolVar(&verboseVV, "vv", false, "more verbose")
	fs.BoolVar(&verboseVVV, "vvv", false, "most verbose")
	fs.BoolVar(&failFast, "fail-fast", false, "stop after the first failure")
	fs.StringVar(&outputFormat, "output-format", "full", "concise or full")
	fs.BoolVar(&snapshotUpdate, "snapshot-update", false, "rewrite mismatched snapshots instead of failing")
	fs.IntVar(&retry, "retry", 0, "re-run the assigned files up to N times while any test fails")
	fs.BoolVar(&tryImportFixtures, "try-import-fixtures", false, "also resolve fixtures imported from other modules")
	fs.StringVar(&testPrefix, "test-prefix", "test", "test function name prefix (replayed from the main process's resolved config)")
	fs.BoolVar(&respectIgnoreFiles, "respect-ignore-files", true, "honor .gitignore while walking (replayed from config)")
	fs.Var(&tagExprs, "t", "tag filter expression (repeatable, OR-combined)")
	fs.Var(&matchPatterns, "match", "test name regexp filter (repeatable, OR-combined)")

	fs.Usage = func() {
		kcli.Writeln(stderr, "Usage: karva-worker --cache-dir DIR --run-hash HASH --worker-id N [flags] <files...>")
		kcli.Writeln(stderr)
		kcli.Writeln(stderr, "Internal worker process spawned by `karva test`; not meant to be run by hand.")
		kcli.Writeln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return kcli.ExitOK
		}
		return kcli.ExitConfigError
	}

	if cacheDir == "" || runHash == "" || workerID < 0 {
		kcli.Writeln(stderr, "karva-worker: --cache-dir, --run-hash, and --worker-id are required")
		return kcli.ExitConfigError
	}

	files := fs.Args()
	if len(files) == 0 {
		return kcli.ExitOK
	}

	filter, err := testfilter.New(tagExprs, matchPatterns)
	if err != nil {
		kcli.Writef(stderr, "karva-worker: %v\n", err)
		return kcli.ExitConfigError
	}

	cwd, err := kpath.New(".")
	if err != nil {
		kcli.Writef(stderr, "karva-worker: %v\n", err)
		return kcli.ExitConfigError
	}

	var roots []discover.TestPath
	for _, f := range files {
		tp, err := discover.ParseTestPath(f)
		if err != nil {
			kcli.Writef(stderr, "karva-worker: %v\n", err)
			return kcli.ExitConfigError
		}
		roots = append(roots, tp)
	}

	writer, err := rcache.NewWriter(cacheDir, runHash, workerID)
	if err != nil {
		kcli.Writef(stderr, "karva-worker: %v\n", err)
		return kcli.ExitConfigError
	}

	parser := starlarkhost.NewParser()
	rt := starlarkhost.NewRuntime(cwd)

	discoverer := discover.New(parser, rt)
	discoverer.TestPrefix = testPrefix
	discoverer.RespectIgnoreFiles = respectIgnoreFiles
	_ = tryImportFixtures // see DESIGN.md: no resolver hook exists yet to widen discovery with

	pkg, discoveryDiags := discoverer.Discover(roots, cwd)
	testfilter.ApplyToPackage(pkg, filter)

	render := diagnostic.New(diagnostic.DefaultLoader)
	if len(discoveryDiags) > 0 {
		var buf strings.Builder
		render.RenderPools(&buf, discoveryDiags, nil, nil)
		_ = writer.AppendDiscoveryDiagnostics(buf.String())
	}

	opts := runner.Options{FailFast: failFast, Strict: true, SnapshotUpdate: snapshotUpdate}
	rr, runDiags := runWithRetry(rt, opts, pkg, retry)

	if len(runDiags) > 0 {
		var buf strings.Builder
		render.RenderPools(&buf, nil, fixtureDiags(runDiags), testDiags(runDiags))
		_ = writer.AppendDiagnostics(buf.String())
	}

	for _, res := range rr.Results {
		stats := rcache.Stats{}
		switch res.Outcome {
		case runner.Passed:
			stats.Passed = 1
		case runner.Skipped:
			stats.Skipped = 1
		case runner.Failed:
			stats.Failed = 1
		}
		dur := rcache.Duration{Ms: uint64(res.Duration / time.Millisecond)}
		if err := writer.WriteTest(res.Test.DisplayName, stats, dur); err != nil {
			kcli.Writef(stderr, "karva-worker: %v\n", err)
			return kcli.ExitConfigError
		}
	}

	_ = outputFormat // formatting is the main process's concern; the worker only writes raw diagnostic text to the cache

	if rr.HasFailures() {
		return kcli.ExitTestFailure
	}
	return kcli.ExitOK
}

// runWithRetry re-runs the whole assigned batch up to retry additional
// times while any test in it still fails, returning the first
// failure-free attempt or, failing that, the last attempt made. The
// Runner has no concept of re-invoking a single already-executed test in
// isolation (a scope's fixtures tear down on scope exit), so a retry
// here means redoing the batch, the same granularity partitioning
// already assigns work at.
func runWithRetry(rt kruntime.Runtime, opts runner.Options, pkg *discover.DiscoveredPackage, retry int) (*runner.RunResult, []kparse.Diagnostic) {
	rr, diags := runner.New(rt, opts).Run(pkg)
	for attempt := 0; attempt < retry && rr.HasFailures(); attempt++ {
		rr, diags = runner.New(rt, opts).Run(pkg)
	}
	return rr, diags
}

func fixtureDiags(diags []kparse.Diagnostic) []kparse.Diagnostic {
	var out []kparse.Diagnostic
	for _, d := range diags {
		if strings.HasPrefix(d.Category, "fixture") {
			out = append(out, d)
		}
	}
	return out
}

func testDiags(diags []kparse.Diagnostic) []kparse.Diagnostic {
	var out []kparse.Diagnostic
	for _, d := range diags {
		if !strings.HasPrefix(d.Category, "fixture") {
			out = append(out, d)
		}
	}
	return out
}
