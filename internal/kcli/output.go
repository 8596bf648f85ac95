package kcli

import (
	"fmt"
	"io"
)

// Writef writes formatted output to w, ignoring write errors — there is
// no reasonable recovery from a failed write to stdout/stderr.
func Writef(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Writeln writes a line to w, ignoring write errors.
func Writeln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}

// Write writes a string to w, ignoring write errors.
func Write(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}
