package normalize

import "github.com/karvarun/karva/internal/ktags"

// FixtureResolver resolves a bare fixture name to the DiscoveredFixture
// that should supply it, searching the requesting module's own fixtures
// first, then the nearest-to-farthest chain of ancestor conftest.py
// fixture sets. The first match wins. Exported so internal/runner can
// build the same per-scope resolvers the normalizer uses, for autouse
// fixture installation.
type FixtureResolver struct {
	local []map[string]*ktags.DiscoveredFixture // innermost first: module, then package conftest chain reversed
}

// NewResolver builds a resolver for a module given its own fixtures and
// the root-to-leaf chain of ancestor conftest fixture maps.
func NewResolver(own map[string]*ktags.DiscoveredFixture, rootToLeafChain []map[string]*ktags.DiscoveredFixture) *FixtureResolver {
	r := &FixtureResolver{}
	r.local = append(r.local, own)
	for i := len(rootToLeafChain) - 1; i >= 0; i-- {
		r.local = append(r.local, rootToLeafChain[i])
	}
	return r
}

// resolve looks up name across the resolver's search chain.
func (r *FixtureResolver) resolve(name string) (*ktags.DiscoveredFixture, bool) {
	for _, m := range r.local {
		if f, ok := m[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// LocalFixtureMap indexes fixtures by their bare function name.
func LocalFixtureMap(fixtures []*ktags.DiscoveredFixture) map[string]*ktags.DiscoveredFixture {
	m := make(map[string]*ktags.DiscoveredFixture, len(fixtures))
	for _, f := range fixtures {
		m[f.Name.Function] = f
	}
	return m
}
