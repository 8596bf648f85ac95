package kparse

import "github.com/karvarun/karva/internal/kpath"

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// Diagnostic is a parse-time problem report, carrying enough to be rendered
// by internal/diagnostic without that package knowing anything about the
// host grammar.
type Diagnostic struct {
	Severity Severity
	Category string
	Message  string
	Location kpath.Location

	// Secondary carries additional related spans (e.g. a fixture's own
	// definition site for a missing-fixture diagnostic). Optional.
	Secondary []kpath.Location
	// Info is a freeform trailing note list rendered after the primary
	// span. Optional.
	Info []string
}

// Parser produces a Module AST from source text. Implementations translate
// one host language's grammar into the shapes kparse defines; the core
// never imports a concrete implementation directly.
type Parser interface {
	// Parse parses source as a module located at path. Parse failures are
	// returned as diagnostics with SeverityError rather than a Go error,
	// since a single malformed file must not abort a whole discovery run.
	Parse(source []byte, path kpath.Path) (*Module, []Diagnostic)
}
