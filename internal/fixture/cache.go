// Package fixture executes NormalizedFixtures inside one worker: it owns
// the scope-aware FixtureCache, runs generator finalizers in LIFO order on
// scope exit, and installs/tears down autouse fixtures around each scope.
package fixture

import (
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

// entry is one cached fixture value.
type entry struct {
	value kruntime.Value
	scope ktags.FixtureScope
	// owner distinguishes package-scope entries by the directory of the
	// conftest that defines the fixture, so that tearing down one package
	// node's scope never clears an ancestor's or a sibling's entries.
	// Every other scope has a single run-wide instance and leaves this empty.
	owner string
}

// Cache maps a fixture's synthetic name to its cached value and the scope
// it was cached at. Invariant: for a value cached at scope S, every
// transitive dependency is cached at scope >= S, since a fixture can only
// be executed after all of its dependencies are.
type Cache struct {
	entries map[string]entry
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached value for name and whether it is present.
func (c *Cache) Get(name string) (kruntime.Value, bool) {
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set inserts or overwrites the cached value for name at scope, owned by
// owner (the defining conftest's directory for ScopePackage, empty for
// every other scope).
func (c *Cache) Set(name string, value kruntime.Value, scope ktags.FixtureScope, owner string) {
	c.entries[name] = entry{value: value, scope: scope, owner: owner}
}

// ClearScope removes every cache entry recorded at exactly scope and owner;
// entries at an outer scope, or at the same scope but a different owner
// (an ancestor or sibling package), are retained.
func (c *Cache) ClearScope(scope ktags.FixtureScope, owner string) {
	for name, e := range c.entries {
		if e.scope == scope && e.owner == owner {
			delete(c.entries, name)
		}
	}
}
