package ktags

import (
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
)

// DiscoveredFixture is a fixture found at discovery time: its identity,
// resolved scope, and metadata needed to later normalize and execute it.
// Scope is resolved exactly once here (including dynamic-scope callbacks)
// and is immutable thereafter.
type DiscoveredFixture struct {
	Name QualifiedName

	Scope   FixtureScope
	Autouse bool

	// Params is nil when the fixture is not itself parametrized; when
	// non-nil, the fixture produces one value per entry.
	Params []kruntime.Value

	IsGenerator bool

	// RequiredFixtures are dependency names extracted from the parameter
	// list. The special name "request" is recognized separately and is
	// never included here.
	RequiredFixtures []string

	// UsesRequest is true when the function's parameter list names
	// "request"; the executor binds it to a synthesized request object
	// instead of looking it up as a fixture.
	UsesRequest bool

	Callable kruntime.Callable
	Location kpath.Location
}

// QualifiedName is an alias kept local to ktags so fixture/test identity
// doesn't force every caller to import kpath directly for this one type.
type QualifiedName = kpath.QualifiedFunctionName

// DiscoveredTest is a test function found at discovery time, plus its
// decorator-derived Tags.
type DiscoveredTest struct {
	Name     QualifiedName
	Callable kruntime.Callable
	Tags     Tags
	Location kpath.Location

	// ParamNames is the test function's full parameter list, in order;
	// the normalizer splits this into parametrize-bound and
	// fixture-bound names.
	ParamNames []string

	// UsesRequest is true when the test's parameter list names "request".
	UsesRequest bool
}
