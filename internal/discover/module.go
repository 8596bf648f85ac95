package discover

import (
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/ktags"
)

// ModuleType distinguishes a conftest.py from an ordinary test module.
type ModuleType int

const (
	// ModuleTest is any discovered .py file that is not named conftest.py.
	ModuleTest ModuleType = iota
	// ModuleConfiguration is a conftest.py: its fixtures are visible to
	// every test under its containing directory.
	ModuleConfiguration
)

// DiscoveredModule is one discovered source file: its identity, source
// text, and the fixtures/tests found in it.
type DiscoveredModule struct {
	Path       kpath.Path
	ModulePath kpath.ModulePath
	Source     []byte
	Type       ModuleType

	Fixtures []*ktags.DiscoveredFixture
	Tests    []*ktags.DiscoveredTest

	// ImportErr is set during discovery when the module failed to import.
	// The module still stays in the tree: the error is reported against
	// each of its tests when that test is run.
	ImportErr error
}

// IsEmpty reports whether the module has neither tests nor fixtures, the
// condition under which shrink() removes it from the tree.
func (m *DiscoveredModule) IsEmpty() bool {
	return len(m.Fixtures) == 0 && len(m.Tests) == 0
}
