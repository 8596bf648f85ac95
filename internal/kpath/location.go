package kpath

import "fmt"

// Range is a byte-offset span into a module's source text, paired with the
// human-facing line/column of its start for rendering.
type Range struct {
	StartByte, EndByte int
	StartLine          int // 1-based
	StartColumn        int // 1-based, in runes
}

// Location identifies a source span: the file it came from plus the range
// within it. Every diagnostic carries exactly one primary Location and may
// carry secondary ones.
type Location struct {
	Path  Path
	Line  int
	Column int
	Range Range
}

// String renders "path:line:column" for terse diagnostic headers.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path.String(), l.Line, l.Column)
}

// QualifiedFunctionName pairs a module with one of its top-level function
// names. Two names compare equal iff both the module and function name
// compare equal.
type QualifiedFunctionName struct {
	Module   ModulePath
	Function string
}

// Equal reports whether q and other name the same function.
func (q QualifiedFunctionName) Equal(other QualifiedFunctionName) bool {
	return q.Module.Equal(other.Module) && q.Function == other.Function
}

// String renders "module.dotted.path::function_name".
func (q QualifiedFunctionName) String() string {
	if q.Module.String() == "" {
		return q.Function
	}
	return q.Module.String() + "::" + q.Function
}
