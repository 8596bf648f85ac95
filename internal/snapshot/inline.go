package snapshot

import (
	"fmt"
	"strings"

	"github.com/karvarun/karva/internal/kpath"
)

// InlineLiteral is the source location of an assert_snapshot(..., inline=...)
// call's literal argument, as located by the host parser: the byte range to
// replace and the indentation of the call site, in spaces.
type InlineLiteral struct {
	Range      kpath.Range
	CallIndent int
}

// InlineAssert compares rendered against actual, the literal's
// Python-decoded value already extracted from source by the caller.
// matches is true when no rewrite is needed. When matches is false and
// the caller isn't in update mode, mismatchErr carries the unified diff
// to report as the assertion failure.
func InlineAssert(actual, rendered string) (matches bool, mismatchErr error) {
	if actual == rendered {
		return true, nil
	}
	return false, fmt.Errorf("inline snapshot does not match:\n%s", formatDiff(actual, rendered))
}

// RenderLiteral regenerates the Python string literal for value at the
// given call indentation. Multiline values become a backslash-continued
// triple-quoted string, one value line per source line indented four
// spaces past the call, closed at the call's own indentation. Single-line
// values become a double-quoted string with \\ and \" escaped.
func RenderLiteral(value string, callIndent int) string {
	indent := strings.Repeat(" ", callIndent)
	if !strings.Contains(value, "\n") {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
		return `"` + escaped + `"`
	}

	bodyIndent := strings.Repeat(" ", callIndent+4)
	lines := strings.Split(value, "\n")
	var sb strings.Builder
	sb.WriteString("\"\"\"\\\n")
	for _, line := range lines {
		sb.WriteString(bodyIndent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(indent)
	sb.WriteString("\"\"\"")
	return sb.String()
}

// SpliceLiteral replaces lit's byte range within source with replacement,
// returning the rewritten source text.
func SpliceLiteral(source []byte, lit InlineLiteral, replacement string) []byte {
	out := make([]byte, 0, len(source)-(lit.Range.EndByte-lit.Range.StartByte)+len(replacement))
	out = append(out, source[:lit.Range.StartByte]...)
	out = append(out, replacement...)
	out = append(out, source[lit.Range.EndByte:]...)
	return out
}
