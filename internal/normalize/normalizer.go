package normalize

import (
	"fmt"
	"sort"

	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

// Normalizer flattens a DiscoveredPackage tree into a deterministic list
// of NormalizedTests. One Normalizer instance corresponds to one run: the
// per-fixture variant memoization in spec.md ("the first normalization of
// F fixes its variant set for the entire run") is scoped to its lifetime.
type Normalizer struct {
	variantCache map[string][]*NormalizedFixture
	inProgress   map[string]bool
	str          *stringifier
}

// New returns an empty Normalizer ready for one run.
func New() *Normalizer {
	return &Normalizer{
		variantCache: make(map[string][]*NormalizedFixture),
		inProgress:   make(map[string]bool),
		str:          newStringifier(),
	}
}

// Normalize walks pkg depth-first (Session scope is the tree root, then
// every Package, then every Module) and returns every NormalizedTest in a
// deterministic order, plus any diagnostics raised while resolving
// fixtures.
func (n *Normalizer) Normalize(pkg *discover.DiscoveredPackage) ([]*NormalizedTest, []kparse.Diagnostic) {
	return n.walk(pkg, nil)
}

func (n *Normalizer) walk(pkg *discover.DiscoveredPackage, chain []map[string]*ktags.DiscoveredFixture) ([]*NormalizedTest, []kparse.Diagnostic) {
	newChain := append(append([]map[string]*ktags.DiscoveredFixture{}, chain...), ConftestFixtures(pkg))

	var tests []*NormalizedTest
	var diags []kparse.Diagnostic

	for _, mod := range SortedModules(pkg) {
		if mod.Type == discover.ModuleConfiguration {
			continue
		}
		resolver := NewResolver(LocalFixtureMap(mod.Fixtures), newChain)
		for _, test := range mod.Tests {
			nts, ds := n.NormalizeTest(test, resolver)
			tests = append(tests, nts...)
			diags = append(diags, ds...)
		}
	}

	for _, child := range SortedPackages(pkg) {
		ts, ds := n.walk(child, newChain)
		tests = append(tests, ts...)
		diags = append(diags, ds...)
	}

	return tests, diags
}

// ConftestFixtures indexes the fixtures declared directly in pkg's own
// conftest.py modules (not its children's).
func ConftestFixtures(pkg *discover.DiscoveredPackage) map[string]*ktags.DiscoveredFixture {
	m := make(map[string]*ktags.DiscoveredFixture)
	for path := range pkg.ConfigModules {
		mod := pkg.Modules[path]
		if mod == nil {
			continue
		}
		for _, f := range mod.Fixtures {
			m[f.Name.Function] = f
		}
	}
	return m
}

// SortedModules returns pkg's own modules in deterministic (name-sorted)
// order, the same order Normalize walks them in.
func SortedModules(pkg *discover.DiscoveredPackage) []*discover.DiscoveredModule {
	keys := make([]string, 0, len(pkg.Modules))
	for k := range pkg.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*discover.DiscoveredModule, len(keys))
	for i, k := range keys {
		out[i] = pkg.Modules[k]
	}
	return out
}

// SortedPackages returns pkg's child packages in deterministic (name-sorted)
// order, the same order Normalize walks them in.
func SortedPackages(pkg *discover.DiscoveredPackage) []*discover.DiscoveredPackage {
	keys := make([]string, 0, len(pkg.Packages))
	for k := range pkg.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*discover.DiscoveredPackage, len(keys))
	for i, k := range keys {
		out[i] = pkg.Packages[k]
	}
	return out
}

// NormalizeFixture resolves and normalizes the fixture named name,
// returning its list of variants (length 1 unless it or a dependency is
// parametrized). The returned names are non-empty only when name itself
// cannot be resolved or closes a dependency cycle; unresolved names
// further down are recorded on each variant's MissingFixtures instead.
func (n *Normalizer) NormalizeFixture(name string, resolver *FixtureResolver) ([]*NormalizedFixture, []string) {
	if name == requestFixtureName {
		return []*NormalizedFixture{{SyntheticName: requestFixtureName}}, nil
	}

	fixture, ok := resolver.resolve(name)
	if !ok {
		return nil, []string{name}
	}

	key := fixture.Name.String()
	if cached, ok := n.variantCache[key]; ok {
		return cached, nil
	}
	if n.inProgress[key] {
		// Circular fixture dependency: report it where the unbounded Go
		// recursion would otherwise occur, rather than overflowing the
		// stack. See DESIGN.md for why this lives here rather than in
		// the fixture executor.
		return nil, []string{fmt.Sprintf("%s (circular dependency)", name)}
	}
	n.inProgress[key] = true
	defer delete(n.inProgress, key)

	depVariantLists := make([][]*NormalizedFixture, 0, len(fixture.RequiredFixtures))
	var resolvedDepNames []string
	var missing []string
	for _, dep := range fixture.RequiredFixtures {
		variants, miss := n.NormalizeFixture(dep, resolver)
		missing = append(missing, miss...)
		if len(miss) > 0 {
			continue
		}
		depVariantLists = append(depVariantLists, variants)
		resolvedDepNames = append(resolvedDepNames, dep)
	}

	params := fixture.Params
	hasParam := params != nil
	if !hasParam {
		params = []kruntime.Value{nil}
	}

	combos := cartesian(depVariantLists)
	variants := make([]*NormalizedFixture, 0, len(combos)*len(params))
	for _, combo := range combos {
		for _, p := range params {
			nf := &NormalizedFixture{
				SyntheticName:   fixture.Name.Function,
				HasParam:        hasParam,
				Param:           p,
				Dependencies:    append([]*NormalizedFixture{}, combo...),
				DependencyNames: append([]string{}, resolvedDepNames...),
				Scope:           fixture.Scope,
				Autouse:         fixture.Autouse,
				IsGenerator:     fixture.IsGenerator,
				UsesRequest:     fixture.UsesRequest,
				Callable:        fixture.Callable,
				Location:        fixture.Location,
				MissingFixtures: append([]string{}, missing...),
			}
			if hasParam {
				nf.SyntheticName = fmt.Sprintf("%s[%s]", fixture.Name.Function, n.str.stringify(p))
			}
			variants = append(variants, nf)
		}
	}
	if len(variants) == 0 {
		variants = []*NormalizedFixture{{
			SyntheticName:   fixture.Name.Function,
			Scope:           fixture.Scope,
			MissingFixtures: missing,
		}}
	}

	n.variantCache[key] = variants
	return variants, nil
}

// NormalizeTest expands one DiscoveredTest into the Cartesian product of
// its fixture dependency variants, use-fixture variants, and parametrize
// rows.
func (n *Normalizer) NormalizeTest(test *ktags.DiscoveredTest, resolver *FixtureResolver) ([]*NormalizedTest, []kparse.Diagnostic) {
	parametrizeNames := test.Tags.ParametrizeParamNames()
	isParametrizeName := make(map[string]bool, len(parametrizeNames))
	for _, pn := range parametrizeNames {
		isParametrizeName[pn] = true
	}

	var regularFixtureNames []string
	for _, p := range test.ParamNames {
		if p == requestFixtureName || isParametrizeName[p] {
			continue
		}
		regularFixtureNames = append(regularFixtureNames, p)
	}

	var missing []string
	var resolvedFixtureNames []string
	depVariantLists := make([][]*NormalizedFixture, 0, len(regularFixtureNames))
	for _, name := range regularFixtureNames {
		variants, miss := n.NormalizeFixture(name, resolver)
		missing = append(missing, miss...)
		if len(miss) > 0 {
			continue
		}
		depVariantLists = append(depVariantLists, variants)
		resolvedFixtureNames = append(resolvedFixtureNames, name)
	}

	useFixtureNames := test.Tags.UseFixtureNames()
	useVariantLists := make([][]*NormalizedFixture, 0, len(useFixtureNames))
	for _, name := range useFixtureNames {
		variants, miss := n.NormalizeFixture(name, resolver)
		missing = append(missing, miss...)
		if len(miss) > 0 {
			continue
		}
		useVariantLists = append(useVariantLists, variants)
	}

	parametrizeTags := test.Tags.Parametrizes()
	rowLists := make([][]parametrizeBinding, 0, len(parametrizeTags))
	for _, tag := range parametrizeTags {
		var bindings []parametrizeBinding
		for _, row := range tag.Rows {
			bindings = append(bindings, parametrizeBinding{names: tag.ArgNames, values: row})
		}
		rowLists = append(rowLists, bindings)
	}

	depCombos := cartesian(depVariantLists)
	useCombos := cartesian(useVariantLists)
	rowCombos := cartesian(rowLists)

	var out []*NormalizedTest
	for _, depCombo := range depCombos {
		for _, useCombo := range useCombos {
			for _, rowCombo := range rowCombos {
				out = append(out, n.buildNormalizedTest(test, resolvedFixtureNames, depCombo, useCombo, rowCombo, missing))
			}
		}
	}
	return out, nil
}

type parametrizeBinding struct {
	names  []string
	values []kruntime.Value
}

func (n *Normalizer) buildNormalizedTest(
	test *ktags.DiscoveredTest,
	fixtureParamNames []string,
	depCombo, useCombo []*NormalizedFixture,
	rowCombo []parametrizeBinding,
	missing []string,
) *NormalizedTest {
	params := make(map[string]kruntime.Value)
	var nameParts []string

	// Fixture-bound argument values are not yet known here: they come
	// from executing FixtureDependencies at runtime (internal/fixture).
	// Only their param fingerprint, when parametrized, contributes to
	// the display name.
	for i, name := range fixtureParamNames {
		if i >= len(depCombo) {
			continue
		}
		nf := depCombo[i]
		if nf.HasParam {
			nameParts = append(nameParts, fmt.Sprintf("%s=%s", name, n.str.stringify(nf.Param)))
		}
	}

	for _, binding := range rowCombo {
		for i, argName := range binding.names {
			if i >= len(binding.values) {
				continue
			}
			params[argName] = binding.values[i]
			nameParts = append(nameParts, fmt.Sprintf("%s=%s", argName, n.str.stringify(binding.values[i])))
		}
	}

	displayName := test.Name.Function
	if len(nameParts) > 0 {
		displayName = fmt.Sprintf("%s[%s]", test.Name.Function, joinParamParts(nameParts))
	}

	return &NormalizedTest{
		Name:                test.Name,
		DisplayName:         displayName,
		Params:              params,
		FixtureDependencies: append([]*NormalizedFixture{}, depCombo...),
		FixtureNames:        append([]string{}, fixtureParamNames...),
		UseFixtures:         append([]*NormalizedFixture{}, useCombo...),
		Callable:            test.Callable,
		Location:            test.Location,
		Tags:                test.Tags,
		UsesRequest:         test.UsesRequest,
		MissingFixtures:     append([]string{}, missing...),
	}
}

func joinParamParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "-"
		}
		out += p
	}
	return out
}
