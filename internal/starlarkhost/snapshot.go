package starlarkhost

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/snapshot"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// snapshotScope is the active test's snapshot context, stashed directly
// on the Runtime rather than in a starlark.Thread local: there is exactly
// one live scope per Runtime at a time, matching the one-goroutine-at-a-
// time contract the rest of the package relies on, and the karva.assert_*
// builtins are already bound methods on *Runtime.
type snapshotScope struct {
	manager  *snapshot.Manager
	testFile kpath.Path
	relPath  string
	testID   string
	seq      *snapshot.Sequencer
}

// EnterSnapshotScope implements kruntime.SnapshotHost.
func (r *Runtime) EnterSnapshotScope(scope kruntime.SnapshotScope) {
	relPath := scope.TestFile.String()
	if trimmed, ok := scope.TestFile.TrimPrefix(r.cwd); ok {
		relPath = trimmed
	}
	r.snap = &snapshotScope{
		manager:  snapshot.New(scope.Update),
		testFile: scope.TestFile,
		relPath:  relPath,
		testID:   scope.TestID,
		seq:      &snapshot.Sequencer{},
	}
}

// ExitSnapshotScope implements kruntime.SnapshotHost.
func (r *Runtime) ExitSnapshotScope() {
	r.snap = nil
}

// karvaModule builds the predeclared `karva` namespace object, the same
// starlarkstruct.Module shape the corpus already uses for its "assert"
// module: the snapshot assertions live here rather than as bare globals
// since that's the dotted name test code calls them through, and doing
// so as bound methods on this specific Runtime is how they reach the
// active snapshotScope.
func (r *Runtime) karvaModule() starlark.Value {
	return &starlarkstruct.Module{
		Name: "karva",
		Members: starlark.StringDict{
			"assert_snapshot":     starlark.NewBuiltin("karva.assert_snapshot", r.assertSnapshotBuiltin),
			"assert_cmd_snapshot": starlark.NewBuiltin("karva.assert_cmd_snapshot", r.assertCmdSnapshotBuiltin),
			"skip":                starlark.NewBuiltin("karva.skip", skipBuiltin),
			"fail":                starlark.NewBuiltin("karva.fail", failBuiltin),
		},
	}
}

func (r *Runtime) assertSnapshotBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	var inline starlark.Value = starlark.None
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "inline?", &inline, "name?", &name); err != nil {
		return nil, err
	}
	scope := r.snap
	if scope == nil {
		return nil, &failSignal{reason: "assert_snapshot called outside of a running test"}
	}
	rendered := display(value)

	if inlineStr, ok := starlark.AsString(inline); ok {
		matches, mismatchErr := snapshot.InlineAssert(inlineStr, rendered)
		if matches {
			return starlark.None, nil
		}
		if scope.manager.Update {
			if err := r.rewriteInlineLiteral(thread, scope, rendered); err != nil {
				return nil, &failSignal{reason: err.Error()}
			}
			return starlark.None, nil
		}
		return nil, &failSignal{reason: mismatchErr.Error()}
	}

	key := snapshot.Key{
		ModuleLeaf:   moduleLeaf(scope.testFile),
		TestName:     scope.testID,
		ExplicitName: name,
		Unnamed:      scope.seq.Next(name),
	}
	line := callSiteLine(thread)
	if diag := scope.manager.AssertFile(scope.testFile, scope.relPath, scope.testID, line, key, rendered); diag != nil {
		return nil, &failSignal{reason: diag.Message}
	}
	return starlark.None, nil
}

func (r *Runtime) assertCmdSnapshotBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command *starlark.List
	var filters *starlark.List
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "command", &command, "filters?", &filters, "name?", &name); err != nil {
		return nil, err
	}
	scope := r.snap
	if scope == nil {
		return nil, &failSignal{reason: "assert_cmd_snapshot called outside of a running test"}
	}

	argv, err := stringsFromList(command)
	if err != nil || len(argv) == 0 {
		return nil, &failSignal{reason: "assert_cmd_snapshot: command must be a non-empty list of strings"}
	}
	filterPairs, err := filtersFromList(filters)
	if err != nil {
		return nil, &failSignal{reason: err.Error()}
	}

	result, err := snapshot.RunCommand(argv[0], argv[1:], filterPairs)
	if err != nil {
		return nil, &failSignal{reason: err.Error()}
	}
	rendered := snapshot.FormatCmdResult(result)

	key := snapshot.Key{
		ModuleLeaf:   moduleLeaf(scope.testFile),
		TestName:     scope.testID,
		ExplicitName: name,
		Unnamed:      scope.seq.Next(name),
	}
	line := callSiteLine(thread)
	if diag := scope.manager.AssertFile(scope.testFile, scope.relPath, scope.testID, line, key, rendered); diag != nil {
		return nil, &failSignal{reason: diag.Message}
	}
	return starlark.None, nil
}

func moduleLeaf(path kpath.Path) string {
	return strings.TrimSuffix(path.Base(), path.Ext())
}

func stringsFromList(l *starlark.List) ([]string, error) {
	if l == nil {
		return nil, nil
	}
	out := make([]string, 0, l.Len())
	iter := l.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// filtersFromList reads a list of (pattern, replacement) string tuples
// into compiled snapshot.Filter values.
func filtersFromList(l *starlark.List) ([]snapshot.Filter, error) {
	if l == nil {
		return nil, nil
	}
	var out []snapshot.Filter
	iter := l.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		tup, ok := v.(starlark.Tuple)
		if !ok || tup.Len() != 2 {
			return nil, fmt.Errorf("filters must be a list of (pattern, replacement) pairs")
		}
		pattern, ok1 := starlark.AsString(tup[0])
		replacement, ok2 := starlark.AsString(tup[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("filters must be a list of (pattern, replacement) string pairs")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
		}
		out = append(out, snapshot.Filter{Pattern: re, Replacement: replacement})
	}
	return out, nil
}

// callSiteLine reads the source line of the call currently in progress on
// thread, one frame up from the builtin itself: the line assert_snapshot
// was written on. A malformed or empty call stack yields 0 rather than
// failing the assertion outright.
func callSiteLine(thread *starlark.Thread) int {
	stack := thread.CallStack()
	if len(stack) == 0 {
		return 0
	}
	return int(stack[len(stack)-1].Pos.Line)
}

func callSitePosition(thread *starlark.Thread) (line, col int) {
	stack := thread.CallStack()
	if len(stack) == 0 {
		return 0, 0
	}
	pos := stack[len(stack)-1].Pos
	return int(pos.Line), int(pos.Col)
}

// rewriteInlineLiteral regenerates the inline= literal at the call site
// and writes the rewritten source back to scope.testFile. Mixed
// single/triple-quote edge cases are not handled; the literal must be a
// single ordinary or triple-quoted string on the line(s) following
// "inline=".
func (r *Runtime) rewriteInlineLiteral(thread *starlark.Thread, scope *snapshotScope, rendered string) error {
	line, _ := callSitePosition(thread)
	if line <= 0 {
		return fmt.Errorf("assert_snapshot: could not resolve call site for inline rewrite")
	}
	source, err := os.ReadFile(scope.testFile.String())
	if err != nil {
		return err
	}
	lines := strings.Split(string(source), "\n")
	if line-1 >= len(lines) {
		return fmt.Errorf("assert_snapshot: call line %d out of range in %s", line, scope.relPath)
	}
	indent := indentOf(lines[line-1])

	rng, ok := locateInlineLiteral(source, lineStarts(lines)[line-1])
	if !ok {
		return fmt.Errorf("assert_snapshot: inline literal not found at %s:%d", scope.relPath, line)
	}
	replacement := snapshot.RenderLiteral(rendered, indent)
	rewritten := snapshot.SpliceLiteral(source, snapshot.InlineLiteral{Range: rng, CallIndent: indent}, replacement)
	return os.WriteFile(scope.testFile.String(), rewritten, 0o644)
}

func indentOf(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

// locateInlineLiteral finds the inline= argument's string literal byte
// range, searching forward from lineStart for the "inline=" keyword
// argument and then scanning its value as an ordinary or triple-quoted
// string.
func locateInlineLiteral(source []byte, lineStart int) (kpath.Range, bool) {
	if lineStart >= len(source) {
		return kpath.Range{}, false
	}
	rest := string(source[lineStart:])
	idx := strings.Index(rest, "inline=")
	if idx < 0 {
		return kpath.Range{}, false
	}
	i := lineStart + idx + len("inline=")
	for i < len(source) && (source[i] == ' ' || source[i] == '\t') {
		i++
	}
	if i >= len(source) {
		return kpath.Range{}, false
	}
	quote := source[i]
	if quote != '"' && quote != '\'' {
		return kpath.Range{}, false
	}
	triple := i+2 < len(source) && source[i+1] == quote && source[i+2] == quote
	if triple {
		j := i + 3
		for j+2 < len(source) {
			if source[j] == quote && source[j+1] == quote && source[j+2] == quote {
				return kpath.Range{StartByte: i, EndByte: j + 3}, true
			}
			j++
		}
		return kpath.Range{}, false
	}
	j := i + 1
	for j < len(source) {
		if source[j] == '\\' {
			j += 2
			continue
		}
		if source[j] == quote {
			return kpath.Range{StartByte: i, EndByte: j + 1}, true
		}
		j++
	}
	return kpath.Range{}, false
}
