package karvacli

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/karvarun/karva/internal/config"
	"github.com/karvarun/karva/internal/diagnostic"
	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/kcli"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/orchestrator"
	"github.com/karvarun/karva/internal/partition"
	"github.com/karvarun/karva/internal/rcache"
	"github.com/karvarun/karva/internal/starlarkhost"
	"github.com/karvarun/karva/internal/testfilter"
)

func runTest(args []string, stdout, stderr io.Writer) int {
	var (
		verboseV          bool
		verboseVV         bool
		verboseVVV        bool
		colorFlag         string
		noProgress        bool
		tagExprs          kcli.StringSlice
		matchPatterns     kcli.StringSlice
		failFast          bool
		showOutput        bool
		outputFormat      string
		snapshotUpdate    bool
		retry             int
		tryImportFixtures bool
	)

	fs := kcli.NewFlagSet("test", stderr)
	fs.BoolVar(&verboseV, "v", false, "verbose")
	fs.BoolVar(&verboseVV, "vv", false, "more verbose")
	fs.BoolVar(&verboseVVV, "vvv", false, "most verbose")
	fs.StringVar(&colorFlag, "color", "auto", "always, never, or auto")
	fs.BoolVar(&noProgress, "no-progress", false, "suppress the live progress line")
	fs.Var(&tagExprs, "t", "tag filter expression (repeatable, OR-combined)")
	fs.Var(&matchPatterns, "match", "test name regexp filter (repeatable, OR-combined)")
	fs.BoolVar(&failFast, "fail-fast", false, "stop after the first failure")
	fs.BoolVar(&showOutput, "s", false, "show captured test output")
	fs.StringVar(&outputFormat, "output-format", "", "concise or full (default from config, else full)")
	fs.BoolVar(&snapshotUpdate, "snapshot-update", false, "rewrite mismatched snapshots instead of failing")
	fs.IntVar(&retry, "retry", 0, "re-run a failing worker's files up to N times")
	fs.BoolVar(&tryImportFixtures, "try-import-fixtures", false, "also resolve fixtures imported from other modules")

	fs.Usage = func() {
		kcli.Writeln(stderr, "Usage: karva test [flags] [PATHS...]")
		kcli.Writeln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return kcli.ExitOK
		}
		return kcli.ExitConfigError
	}

	color, err := kcli.ParseColorMode(colorFlag)
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}
	_ = color      // diagnostic.Renderer has no color-output hook yet; see DESIGN.md
	_ = noProgress // no live progress line is rendered yet; see DESIGN.md

	filter, err := testfilter.New(tagExprs, matchPatterns)
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}

	cwd, err := kpath.New(".")
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}

	cfgResult, err := config.Discover(cwd.String())
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}
	if cfgResult.Warning != "" {
		kcli.Writef(stderr, "karva: warning: %s\n", cfgResult.Warning)
	}
	cfg := cfgResult.Config

	if outputFormat == "" {
		outputFormat = cfg.Terminal.OutputFormat
	}
	if outputFormat == "" {
		outputFormat = "full"
	}
	failFast = failFast || cfg.Test.FailFast
	tryImportFixtures = tryImportFixtures || cfg.Test.TryImportFixtures

	positional := fs.Args()
	if len(positional) == 0 && len(cfg.Src.Include) > 0 {
		positional = cfg.Src.Include
	}
	if len(positional) == 0 {
		positional = []string{"."}
	}

	var roots []discover.TestPath
	for _, raw := range positional {
		tp, err := discover.ParseTestPath(raw)
		if err != nil {
			kcli.Writef(stderr, "karva: %v\n", err)
			return kcli.ExitConfigError
		}
		roots = append(roots, tp)
	}

	parser := starlarkhost.NewParser()
	rt := starlarkhost.NewRuntime(cwd)
	discoverer := discover.New(parser, rt)
	discoverer.TestPrefix = cfg.Test.TestFunctionPrefix
	if discoverer.TestPrefix == "" {
		discoverer.TestPrefix = "test"
	}
	discoverer.RespectIgnoreFiles = cfg.Src.RespectIgnoreFiles

	pkg, discoveryDiags := discoverer.Discover(roots, cwd)
	testfilter.ApplyToPackage(pkg, filter)

	render := diagnostic.New(diagnostic.DefaultLoader)
	if len(discoveryDiags) > 0 {
		render.RenderPools(stderr, discoveryDiags, nil, nil)
	}

	var tests []partition.Test
	for _, mod := range pkg.AllModules() {
		for _, t := range mod.Tests {
			tests = append(tests, partition.Test{Path: mod.Path, DisplayName: t.Name.String()})
		}
	}

	if len(tests) == 0 {
		diagnostic.RenderSummary(stdout, 0, 0, 0, 0)
		return kcli.ExitOK
	}

	workerBinary, err := workerBinaryPath()
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}

	numWorkers := runtime.NumCPU()
	plan := partition.Partition(tests, numWorkers)

	cacheDir := filepath.Join(cwd.String(), ".karva-cache")
	runHash := rcache.NewRunHash()

	flags := replayedFlags(verboseV, verboseVV, verboseVVV, failFast, outputFormat, snapshotUpdate, retry, tagExprs, matchPatterns, discoverer.TestPrefix, discoverer.RespectIgnoreFiles)

	var partitions []orchestrator.Partition
	for i, paths := range plan.Paths {
		strPaths := make([]string, len(paths))
		for j, p := range paths {
			strPaths[j] = p.String()
		}
		partitions = append(partitions, orchestrator.Partition{WorkerID: i, Paths: strPaths, Flags: flags})
	}

	orch := orchestrator.New(cacheDir, runHash)
	start := time.Now()
	agg, aborted, err := orch.Run(workerBinary, partitions, orchestrator.InstallSignalHandler())
	elapsed := time.Since(start)
	if err != nil {
		kcli.Writef(stderr, "karva: %v\n", err)
		return kcli.ExitConfigError
	}

	if agg.DiscoveryDiagnostics != "" {
		kcli.Write(stderr, agg.DiscoveryDiagnostics)
	}
	if agg.Diagnostics != "" {
		kcli.Write(stdout, agg.Diagnostics)
	}
	for _, missing := range agg.MissingWorkers {
		kcli.Writef(stderr, "karva: warning: worker-%d produced no results (crashed?)\n", missing)
	}

	diagnostic.RenderSummary(stdout, int(agg.Totals.Passed), int(agg.Totals.Failed), int(agg.Totals.Skipped), elapsed)

	if err := rcache.Cleanup(cacheDir, runHash); err != nil {
		kcli.Writef(stderr, "karva: warning: cache cleanup: %v\n", err)
	}

	if aborted {
		return kcli.ExitTestFailure
	}
	if agg.Totals.Failed > 0 || len(agg.MissingWorkers) > 0 {
		return kcli.ExitTestFailure
	}
	return kcli.ExitOK
}

// replayedFlags rebuilds the worker-facing flag slice from the resolved
// configuration: the documented replay set (verbosity, fail-fast, output
// format, snapshot-update, tag/name filters, retry count) plus the two
// discovery settings (test-function-prefix, respect-ignore-files) a
// worker must share with the main process's partitioning pass to uphold
// the file-granularity invariant — a mismatch here would let a worker
// discover a different test set than the one counted when the files were
// assigned to it.
func replayedFlags(v, vv, vvv, failFast bool, outputFormat string, snapshotUpdate bool, retry int, tagExprs, matchPatterns []string, testPrefix string, respectIgnoreFiles bool) []string {
	var flags []string
	if vvv {
		flags = append(flags, "-vvv")
	} else if vv {
		flags = append(flags, "-vv")
	} else if v {
		flags = append(flags, "-v")
	}
	if failFast {
		flags = append(flags, "--fail-fast")
	}
	flags = append(flags, "--output-format", outputFormat)
	if snapshotUpdate {
		flags = append(flags, "--snapshot-update")
	}
	if retry > 0 {
		flags = append(flags, "--retry", fmt.Sprint(retry))
	}
	for _, t := range tagExprs {
		flags = append(flags, "-t", t)
	}
	for _, m := range matchPatterns {
		flags = append(flags, "--match", m)
	}
	flags = append(flags, "--test-prefix", testPrefix)
	if !respectIgnoreFiles {
		flags = append(flags, "--respect-ignore-files=false")
	}
	return flags
}
