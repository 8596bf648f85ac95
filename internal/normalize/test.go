package normalize

import (
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

// NormalizedTest is one fully-specialized test case: every parametrize
// row and fixture variant has been bound to a concrete value or a
// concrete NormalizedFixture node.
type NormalizedTest struct {
	Name        kpath.QualifiedFunctionName
	DisplayName string

	// Params holds bound argument values: the fixture-param names and
	// parametrize row values, keyed by the parameter name the test
	// function declares.
	Params map[string]kruntime.Value

	// FixtureDependencies are the normalized fixtures the test's
	// parameter list (minus parametrize-bound names) resolves to, in
	// parameter order.
	FixtureDependencies []*NormalizedFixture
	// FixtureNames[i] is the parameter name FixtureDependencies[i] binds
	// to when invoking the test callable.
	FixtureNames []string

	// UseFixtures are fixtures named by a UseFixtures tag: they must
	// execute but their values are not bound as test arguments.
	UseFixtures []*NormalizedFixture

	Callable    kruntime.Callable
	Location    kpath.Location
	Tags        ktags.Tags
	UsesRequest bool

	// MissingFixtures lists fixture names the test references directly
	// (as parameters or through a UseFixtures tag) that could not be
	// resolved anywhere in scope. Names missing further down a fixture's
	// dependencies are on that NormalizedFixture's MissingFixtures.
	MissingFixtures []string
}
