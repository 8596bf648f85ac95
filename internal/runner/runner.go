package runner

import (
	"fmt"
	"time"

	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/fixture"
	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/normalize"
)

// Options configures a Runner.
type Options struct {
	// FailFast stops traversal after the first non-skip failure; outer
	// scope teardowns still run.
	FailFast bool
	// Strict controls whether an ExpectFail test that unexpectedly passes
	// is reported as a failure. Callers constructing Options{} directly
	// should set this explicitly; New defaults it to true.
	Strict bool
	// SnapshotUpdate is forwarded to the Runtime's snapshot scope on every
	// test, corresponding to --snapshot-update.
	SnapshotUpdate bool
}

// Runner walks a DiscoveredPackage tree in Session -> Package -> Module ->
// Test order, normalizing and executing each test through an
// internal/fixture.Executor.
type Runner struct {
	rt   kruntime.Runtime
	exec *fixture.Executor
	opts Options
}

// New returns a Runner bound to rt, with a fresh fixture Executor.
func New(rt kruntime.Runtime, opts Options) *Runner {
	return &Runner{rt: rt, exec: fixture.New(rt), opts: opts}
}

// DefaultOptions returns the default Runner configuration: fail-fast
// disabled, strict xfail handling enabled.
func DefaultOptions() Options {
	return Options{FailFast: false, Strict: true}
}

// Run normalizes and executes every test reachable from pkg, in
// deterministic traversal order.
func (r *Runner) Run(pkg *discover.DiscoveredPackage) (*RunResult, []kparse.Diagnostic) {
	n := normalize.New()
	rr := &RunResult{}
	var diags []kparse.Diagnostic

	// Session-scope autouse fixtures are visible only through the root
	// package's own conftest chain: install them before anything else
	// runs, so they're in effect for the whole session.
	rootFixtures := normalize.ConftestFixtures(pkg)
	rootResolver := normalize.NewResolver(nil, []map[string]*ktags.DiscoveredFixture{rootFixtures})
	if ds := r.installAutouse(n, rootResolver, rootFixtures, ktags.ScopeSession); len(ds) > 0 {
		diags = append(diags, ds...)
	}

	r.walkPackage(n, pkg, nil, rr, &diags)

	if ds := r.exec.Teardown(ktags.ScopeSession, ""); len(ds) > 0 {
		diags = append(diags, ds...)
	}
	return rr, diags
}

func (r *Runner) walkPackage(
	n *normalize.Normalizer,
	pkg *discover.DiscoveredPackage,
	chain []map[string]*ktags.DiscoveredFixture,
	rr *RunResult,
	diags *[]kparse.Diagnostic,
) {
	if rr.Aborted {
		return
	}

	ownFixtures := normalize.ConftestFixtures(pkg)
	newChain := append(append([]map[string]*ktags.DiscoveredFixture{}, chain...), ownFixtures)
	pkgResolver := normalize.NewResolver(nil, newChain)

	ds := r.installAutouse(n, pkgResolver, ownFixtures, ktags.ScopePackage)
	*diags = append(*diags, ds...)

	for _, mod := range normalize.SortedModules(pkg) {
		if rr.Aborted {
			break
		}
		if mod.Type == discover.ModuleConfiguration {
			continue
		}
		r.runModule(n, mod, newChain, ownFixtures, rr, diags)
	}

	for _, child := range normalize.SortedPackages(pkg) {
		if rr.Aborted {
			break
		}
		r.walkPackage(n, child, newChain, rr, diags)
	}

	if ds := r.exec.Teardown(ktags.ScopePackage, pkg.Path.String()); len(ds) > 0 {
		*diags = append(*diags, ds...)
	}
}

func (r *Runner) runModule(
	n *normalize.Normalizer,
	mod *discover.DiscoveredModule,
	chain []map[string]*ktags.DiscoveredFixture,
	conftestFixtures map[string]*ktags.DiscoveredFixture,
	rr *RunResult,
	diags *[]kparse.Diagnostic,
) {
	own := normalize.LocalFixtureMap(mod.Fixtures)
	resolver := normalize.NewResolver(own, chain)

	// Module-scope autouse fixtures are looked for in the module itself
	// and in its immediate conftest.py; an ancestor conftest's own
	// module-scope autouse fixtures are not re-scanned per descendant
	// module (see DESIGN.md).
	moduleCandidates := make(map[string]*ktags.DiscoveredFixture, len(own)+len(conftestFixtures))
	for name, f := range conftestFixtures {
		moduleCandidates[name] = f
	}
	for name, f := range own {
		moduleCandidates[name] = f
	}
	ds := r.installAutouse(n, resolver, moduleCandidates, ktags.ScopeModule)
	*diags = append(*diags, ds...)

	for _, test := range mod.Tests {
		if rr.Aborted {
			break
		}
		nts, nds := n.NormalizeTest(test, resolver)
		*diags = append(*diags, nds...)

		for _, nt := range nts {
			if mod.ImportErr != nil {
				rr.Results = append(rr.Results, Result{
					Test:          nt,
					Outcome:       Failed,
					FailureReason: ReasonModuleImport,
					Message:       mod.ImportErr.Error(),
					Location:      nt.Location,
				})
				if r.opts.FailFast {
					rr.Aborted = true
					break
				}
				continue
			}

			res := r.runTest(n, nt, moduleCandidates, resolver, diags)
			rr.Results = append(rr.Results, res)
			if r.opts.FailFast && res.Outcome == Failed {
				rr.Aborted = true
				break
			}
		}
	}

	if ds := r.exec.Teardown(ktags.ScopeModule, ""); len(ds) > 0 {
		*diags = append(*diags, ds...)
	}
}

// installAutouse normalizes every fixture in candidates and installs the
// ones that are autouse-at-exactly-scope through the Executor.
func (r *Runner) installAutouse(
	n *normalize.Normalizer,
	resolver *normalize.FixtureResolver,
	candidates map[string]*ktags.DiscoveredFixture,
	scope ktags.FixtureScope,
) []kparse.Diagnostic {
	var diags []kparse.Diagnostic
	for name, f := range candidates {
		if !f.Autouse || f.Scope != scope {
			continue
		}
		variants, miss := n.NormalizeFixture(name, resolver)
		if len(miss) > 0 {
			diags = append(diags, kparse.Diagnostic{
				Severity: kparse.SeverityError,
				Category: "fixture-not-found",
				Message:  fmt.Sprintf("autouse fixture %s: missing %v", name, miss),
				Location: f.Location,
			})
			continue
		}
		if ds := r.exec.InstallAutouse(scope, variants); len(ds) > 0 {
			diags = append(diags, ds...)
		}
	}
	return diags
}

// runTest executes one NormalizedTest's fixtures and the test callable
// itself, classifying the outcome.
func (r *Runner) runTest(
	n *normalize.Normalizer,
	nt *normalize.NormalizedTest,
	moduleCandidates map[string]*ktags.DiscoveredFixture,
	resolver *normalize.FixtureResolver,
	diags *[]kparse.Diagnostic,
) Result {
	start := time.Now()

	if tag, ok := nt.Tags.Skip(); ok && tag.Condition {
		return Result{Test: nt, Outcome: Skipped, Message: tag.Reason, Location: nt.Location, Duration: time.Since(start)}
	}

	if len(nt.MissingFixtures) > 0 {
		return Result{
			Test:            nt,
			Outcome:         Failed,
			FailureReason:   ReasonMissingFixtures,
			MissingFixtures: nt.MissingFixtures,
			Location:        nt.Location,
			Duration:        time.Since(start),
		}
	}

	funcVariants, miss := r.functionAutouseVariants(n, moduleCandidates, resolver)
	if len(miss) > 0 {
		return Result{
			Test:            nt,
			Outcome:         Failed,
			FailureReason:   ReasonMissingFixtures,
			MissingFixtures: miss,
			Location:        nt.Location,
			Duration:        time.Since(start),
		}
	}
	if ds := r.exec.InstallAutouse(ktags.ScopeFunction, funcVariants); len(ds) > 0 {
		if tds := r.exec.Teardown(ktags.ScopeFunction, ""); len(tds) > 0 {
			*diags = append(*diags, tds...)
		}
		return failureFromDiagnostic(nt, ds[0], start)
	}

	kwargs := make(kruntime.Kwargs, len(nt.FixtureDependencies)+1)
	for i, dep := range nt.FixtureDependencies {
		val, ds := r.exec.Execute(dep)
		if len(ds) > 0 {
			if tds := r.exec.Teardown(ktags.ScopeFunction, ""); len(tds) > 0 {
				*diags = append(*diags, tds...)
			}
			return failureFromDiagnostic(nt, ds[0], start)
		}
		if i < len(nt.FixtureNames) {
			kwargs[nt.FixtureNames[i]] = val
		}
	}
	for _, use := range nt.UseFixtures {
		if _, ds := r.exec.Execute(use); len(ds) > 0 {
			if tds := r.exec.Teardown(ktags.ScopeFunction, ""); len(tds) > 0 {
				*diags = append(*diags, tds...)
			}
			return failureFromDiagnostic(nt, ds[0], start)
		}
	}
	for name, val := range nt.Params {
		kwargs[name] = val
	}
	if nt.UsesRequest {
		kwargs["request"] = fixture.Request{}
	}

	if host, ok := r.rt.(kruntime.SnapshotHost); ok {
		host.EnterSnapshotScope(kruntime.SnapshotScope{
			TestFile: nt.Location.Path,
			TestID:   nt.DisplayName,
			Update:   r.opts.SnapshotUpdate,
		})
		defer host.ExitSnapshotScope()
	}

	_, callErr := r.rt.Call(nt.Callable, kwargs)
	result := r.classify(nt, callErr)

	// Teardown diagnostics are warnings (malformed generator close); they
	// never change the already-classified Outcome, but still surface.
	if ds := r.exec.Teardown(ktags.ScopeFunction, ""); len(ds) > 0 {
		*diags = append(*diags, ds...)
	}

	result.Duration = time.Since(start)
	return result
}

// functionAutouseVariants resolves the function-scope autouse fixtures
// visible to a test from its module's own fixtures and immediate conftest.
func (r *Runner) functionAutouseVariants(
	n *normalize.Normalizer,
	moduleCandidates map[string]*ktags.DiscoveredFixture,
	resolver *normalize.FixtureResolver,
) ([]*normalize.NormalizedFixture, []string) {
	var variants []*normalize.NormalizedFixture
	var missing []string
	for name, f := range moduleCandidates {
		if !f.Autouse || f.Scope != ktags.ScopeFunction {
			continue
		}
		vs, miss := n.NormalizeFixture(name, resolver)
		if len(miss) > 0 {
			missing = append(missing, miss...)
			continue
		}
		variants = append(variants, vs...)
	}
	return variants, missing
}

func (r *Runner) classify(nt *normalize.NormalizedTest, callErr error) Result {
	xfail, hasXfail := nt.Tags.ExpectFail()

	if callErr == nil {
		if hasXfail && xfail.Condition && r.opts.Strict {
			return Result{Test: nt, Outcome: Failed, FailureReason: ReasonUnexpectedPass, Message: xfail.Reason, Location: nt.Location}
		}
		return Result{Test: nt, Outcome: Passed, Location: nt.Location}
	}

	exc, ok := r.rt.ClassifyException(callErr)
	if !ok {
		return Result{Test: nt, Outcome: Failed, FailureReason: ReasonException, Message: callErr.Error(), Location: nt.Location}
	}

	switch exc.Kind {
	case kruntime.ExceptionSkip:
		return Result{Test: nt, Outcome: Skipped, Message: exc.Message, Location: nt.Location}
	case kruntime.ExceptionMissingArgument:
		return Result{Test: nt, Outcome: Failed, FailureReason: ReasonMissingFixtures, MissingFixtures: exc.MissingNames, Location: nt.Location}
	}

	if hasXfail && xfail.Condition {
		return Result{Test: nt, Outcome: Passed, Location: nt.Location}
	}

	if exc.Kind == kruntime.ExceptionFail {
		return Result{Test: nt, Outcome: Failed, FailureReason: ReasonUserFail, Message: exc.Message, Location: nt.Location}
	}

	return Result{
		Test:          nt,
		Outcome:       Failed,
		FailureReason: ReasonException,
		Message:       exc.Message,
		ExceptionType: exc.TypeName,
		Traceback:     exc.Traceback,
		Location:      nt.Location,
	}
}

func failureFromDiagnostic(nt *normalize.NormalizedTest, diag kparse.Diagnostic, start time.Time) Result {
	reason := ReasonFixtureError
	if diag.Category == "fixture-not-found" {
		reason = ReasonMissingFixtures
	}
	return Result{
		Test:          nt,
		Outcome:       Failed,
		FailureReason: reason,
		Message:       diag.Message,
		Location:      nt.Location,
		Duration:      time.Since(start),
	}
}
