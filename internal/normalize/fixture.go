// Package normalize flattens discovered tests and fixtures into a
// deterministic list of NormalizedTests: the Cartesian product of
// parametrize rows, fixture parametrizations, and used-fixture variants,
// with every fixture dependency already resolved into its own
// specialization.
package normalize

import (
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

// NormalizedFixture is one concrete realization of a fixture for a single
// (dependency-variant × param) combination.
type NormalizedFixture struct {
	// SyntheticName is the fixture name plus its param stringification
	// when parametrized, e.g. "val" or "val[1]".
	SyntheticName string

	// HasParam/Param mirror spec's Option<Value>: HasParam is false for
	// an unparametrized fixture, in which case request.param is unbound.
	HasParam bool
	Param    kruntime.Value

	Dependencies []*NormalizedFixture
	// DependencyNames[i] is the fixture name Dependencies[i] was resolved
	// from — the keyword argument name to bind it under when invoking
	// this fixture's callable.
	DependencyNames []string

	Scope       ktags.FixtureScope
	Autouse     bool
	IsGenerator bool
	UsesRequest bool
	Callable    kruntime.Callable
	Location    kpath.Location

	// MissingFixtures lists dependency names that could not be resolved
	// anywhere in scope; non-empty means this fixture cannot run.
	MissingFixtures []string
}

// IsRequest marks the synthesized `request` pseudo-fixture: it is never
// looked up by name, never cached, and carries no dependencies.
func (f *NormalizedFixture) IsRequest() bool {
	return f != nil && f.SyntheticName == requestFixtureName
}

const requestFixtureName = "request"
