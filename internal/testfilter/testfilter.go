// Package testfilter applies the -t and --match CLI flags to a discovered
// test: each flag may be repeated, and repeated instances of the same flag
// OR-combine, while a test must satisfy both kinds of filter (tag and name)
// to be selected.
package testfilter

import (
	"fmt"
	"regexp"

	"github.com/karvarun/karva/internal/discover"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/tagexpr"
)

// Filter is a compiled set of -t/--match flags.
type Filter struct {
	tags  []tagexpr.Expr
	names []*regexp.Regexp
}

// New compiles tagExprs (one per -t flag) and matchPatterns (one per
// --match flag). An empty Filter (both slices nil) allows everything.
func New(tagExprs []string, matchPatterns []string) (*Filter, error) {
	f := &Filter{}
	for _, s := range tagExprs {
		expr, err := tagexpr.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("-t %q: %w", s, err)
		}
		f.tags = append(f.tags, expr)
	}
	for _, s := range matchPatterns {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("--match %q: %w", s, err)
		}
		f.names = append(f.names, re)
	}
	return f, nil
}

// Empty reports whether the filter has no -t or --match expressions at all.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.tags) == 0 && len(f.names) == 0)
}

// Allows reports whether a test named displayName, carrying tags, passes
// every configured filter kind. Repeated flags of the same kind OR; the
// two kinds AND.
func (f *Filter) Allows(displayName string, tags ktags.Tags) bool {
	if f == nil {
		return true
	}
	if len(f.tags) > 0 && !f.anyTagMatches(tags) {
		return false
	}
	if len(f.names) > 0 && !f.anyNameMatches(displayName) {
		return false
	}
	return true
}

func (f *Filter) anyTagMatches(tags ktags.Tags) bool {
	has := func(name string) bool {
		for _, n := range tags.CustomNames() {
			if n == name {
				return true
			}
		}
		return false
	}
	for _, expr := range f.tags {
		if expr.Eval(has) {
			return true
		}
	}
	return false
}

func (f *Filter) anyNameMatches(displayName string) bool {
	for _, re := range f.names {
		if re.MatchString(displayName) {
			return true
		}
	}
	return false
}

// ApplyToPackage drops every DiscoveredTest that filter rejects from
// pkg's modules in place, using each test's qualified name as an
// approximation of its eventual display name: the full parametrized
// display name isn't known until normalization, which happens inside
// Runner.Run, downstream of both the main process's partitioning pass
// and a worker's own re-discovery pass.
func ApplyToPackage(pkg *discover.DiscoveredPackage, filter *Filter) {
	if filter.Empty() {
		return
	}
	for _, mod := range pkg.Modules {
		applyToModule(mod, filter)
	}
	for _, child := range pkg.Packages {
		ApplyToPackage(child, filter)
	}
}

func applyToModule(mod *discover.DiscoveredModule, filter *Filter) {
	kept := mod.Tests[:0]
	for _, t := range mod.Tests {
		if filter.Allows(t.Name.String(), t.Tags) {
			kept = append(kept, t)
		}
	}
	mod.Tests = kept
}
