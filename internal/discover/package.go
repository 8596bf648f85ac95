package discover

import "github.com/karvarun/karva/internal/kpath"

// DiscoveredPackage is one directory in the discovery tree: its child
// modules and child packages, keyed by path string so insertion and
// lookup are stable regardless of walk order.
//
// Invariant: every descendant's path begins with its ancestor's path;
// Insert is a no-op for a module whose path does not start with p.Path.
type DiscoveredPackage struct {
	Path     kpath.Path
	Modules  map[string]*DiscoveredModule
	Packages map[string]*DiscoveredPackage

	// ConfigModules records which entries of Modules are conftest.py
	// files, so the normalizer can walk ancestor config modules without
	// re-checking file names.
	ConfigModules map[string]bool
}

// NewPackage returns an empty package rooted at path.
func NewPackage(path kpath.Path) *DiscoveredPackage {
	return &DiscoveredPackage{
		Path:          path,
		Modules:       make(map[string]*DiscoveredModule),
		Packages:      make(map[string]*DiscoveredPackage),
		ConfigModules: make(map[string]bool),
	}
}

// Insert places mod into the tree at the package corresponding to its
// parent directory, creating intermediate packages as needed. It is a
// no-op if mod.Path does not live under p.Path.
func (p *DiscoveredPackage) Insert(mod *DiscoveredModule) {
	if !mod.Path.HasPrefix(p.Path) {
		return
	}
	pkg := p.ensurePackage(mod.Path.Dir())
	pkg.Modules[mod.Path.String()] = mod
	if mod.Type == ModuleConfiguration {
		pkg.ConfigModules[mod.Path.String()] = true
	}
}

func (p *DiscoveredPackage) ensurePackage(dir kpath.Path) *DiscoveredPackage {
	if dir.Equal(p.Path) {
		return p
	}
	rel, ok := dir.TrimPrefix(p.Path)
	if !ok || rel == "" {
		return p
	}
	cur := p
	built := p.Path
	for _, comp := range splitRel(rel) {
		built = built.Join(comp)
		child, ok := cur.Packages[built.String()]
		if !ok {
			child = NewPackage(built)
			cur.Packages[built.String()] = child
		}
		cur = child
	}
	return cur
}

func splitRel(rel string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(rel); i++ {
		if i == len(rel) || rel[i] == '/' || rel[i] == '\\' {
			if i > start {
				parts = append(parts, rel[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// Shrink removes modules containing no tests and no fixtures, then
// recursively removes now-empty child packages. It mutates p in place.
func (p *DiscoveredPackage) Shrink() {
	for key, mod := range p.Modules {
		if mod.IsEmpty() {
			delete(p.Modules, key)
		}
	}
	for key, child := range p.Packages {
		child.Shrink()
		if len(child.Modules) == 0 && len(child.Packages) == 0 {
			delete(p.Packages, key)
		}
	}
}

// TotalTestFunctions counts every DiscoveredTest in the tree, used to
// check the discovery-determinism invariant.
func (p *DiscoveredPackage) TotalTestFunctions() int {
	total := 0
	for _, mod := range p.Modules {
		total += len(mod.Tests)
	}
	for _, child := range p.Packages {
		total += child.TotalTestFunctions()
	}
	return total
}

// AllModules returns every module in the tree, depth first.
func (p *DiscoveredPackage) AllModules() []*DiscoveredModule {
	var out []*DiscoveredModule
	for _, mod := range p.Modules {
		out = append(out, mod)
	}
	for _, child := range p.Packages {
		out = append(out, child.AllModules()...)
	}
	return out
}
