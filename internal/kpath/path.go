// Package kpath provides the UTF-8 path and dotted-module-name primitives
// that every other component of the karva execution core builds on: an
// owned absolute Path, a cwd-relative ModulePath, and the identity/location
// types (QualifiedFunctionName, Location) that diagnostics and normalized
// tests carry around.
package kpath

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrNonUTF8Path is returned when a path arriving from the environment
// is not valid UTF-8.
type ErrNonUTF8Path struct {
	Raw string
}

func (e *ErrNonUTF8Path) Error() string {
	return fmt.Sprintf("path is not valid UTF-8: %q", e.Raw)
}

// Path is an owned, absolute, UTF-8 filesystem path. It is the boundary
// type every other component uses instead of passing raw strings around.
type Path struct {
	clean string
}

// New validates and cleans a path. Relative paths are resolved against the
// process working directory. Any byte sequence that is not valid UTF-8 is
// rejected at the boundary.
func New(raw string) (Path, error) {
	if !utf8.ValidString(raw) {
		return Path{}, &ErrNonUTF8Path{Raw: raw}
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return Path{}, fmt.Errorf("resolving %q: %w", raw, err)
	}
	return Path{clean: filepath.Clean(abs)}, nil
}

// MustNew is New but panics on error. Intended for tests and constants.
func MustNew(raw string) Path {
	p, err := New(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the path as an absolute UTF-8 string.
func (p Path) String() string { return p.clean }

// IsZero reports whether p is the zero value.
func (p Path) IsZero() bool { return p.clean == "" }

// Join appends path components.
func (p Path) Join(parts ...string) Path {
	return Path{clean: filepath.Join(append([]string{p.clean}, parts...)...)}
}

// Dir returns the parent directory.
func (p Path) Dir() Path {
	return Path{clean: filepath.Dir(p.clean)}
}

// Base returns the final path component.
func (p Path) Base() string { return filepath.Base(p.clean) }

// Ext returns the file extension, including the leading dot.
func (p Path) Ext() string { return filepath.Ext(p.clean) }

// Equal reports whether two paths refer to the same cleaned location.
func (p Path) Equal(other Path) bool { return p.clean == other.clean }

// HasPrefix reports whether p is other or a descendant of other.
func (p Path) HasPrefix(other Path) bool {
	if p.clean == other.clean {
		return true
	}
	return strings.HasPrefix(p.clean, other.clean+string(filepath.Separator))
}

// TrimPrefix returns the path relative to other, and true if p is under other.
func (p Path) TrimPrefix(other Path) (string, bool) {
	if !p.HasPrefix(other) {
		return "", false
	}
	rel := strings.TrimPrefix(p.clean, other.clean)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	return rel, true
}
