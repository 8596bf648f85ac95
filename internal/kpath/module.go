package kpath

import (
	"strings"
)

// ModulePath is a dotted module name derived from a file path relative to
// some cwd: the ".py" suffix is dropped, path separators become dots, and
// a trailing "__init__" component collapses into its directory's name.
//
// IsInitPackage records whether the source file was an __init__.py, since
// that information is lost once the component is dropped — without it
// ToPath cannot reconstruct the original file.
type ModulePath struct {
	dotted        string
	IsInitPackage bool
}

// NewModulePath derives a ModulePath from file relative to cwd. It returns
// false if file is not a descendant of cwd or does not have a .py suffix.
func NewModulePath(file, cwd Path) (ModulePath, bool) {
	rel, ok := file.TrimPrefix(cwd)
	if !ok {
		return ModulePath{}, false
	}
	if !strings.HasSuffix(rel, ".py") {
		return ModulePath{}, false
	}
	rel = strings.TrimSuffix(rel, ".py")
	rel = strings.ReplaceAll(rel, "\\", "/")
	parts := strings.Split(rel, "/")

	isInit := false
	if parts[len(parts)-1] == "__init__" {
		isInit = true
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		// a bare __init__.py at cwd itself has no dotted name.
		return ModulePath{dotted: "", IsInitPackage: isInit}, true
	}
	return ModulePath{dotted: strings.Join(parts, "."), IsInitPackage: isInit}, true
}

// String returns the dotted module name.
func (m ModulePath) String() string { return m.dotted }

// ModulePathFromString builds a ModulePath directly from a dotted name,
// for a Runtime adapter that only has a dotted Import() argument to work
// from and needs to resolve it back to a file via ToPath. The resulting
// ModulePath never has IsInitPackage set — a bare package import is
// resolved against its "__init__.py" only by the adapter's own fallback
// logic, since dotted names alone can't distinguish "pkg" the package
// from "pkg" a same-named module.
func ModulePathFromString(dotted string) ModulePath {
	return ModulePath{dotted: dotted}
}

// ToPath reconstructs the file path relative to cwd. It is the inverse of
// NewModulePath: Join(cwd, ToPath(NewModulePath(f, cwd))) == f.
func (m ModulePath) ToPath(cwd Path) Path {
	var parts []string
	if m.dotted != "" {
		parts = strings.Split(m.dotted, ".")
	}
	if m.IsInitPackage {
		parts = append(parts, "__init__")
	}
	if len(parts) == 0 {
		return cwd.Join("__init__.py")
	}
	last := len(parts) - 1
	parts[last] = parts[last] + ".py"
	return cwd.Join(parts...)
}

// Equal reports whether two module paths denote the same dotted name and
// __init__-ness.
func (m ModulePath) Equal(other ModulePath) bool {
	return m.dotted == other.dotted && m.IsInitPackage == other.IsInitPackage
}
