package starlarkhost

import (
	"fmt"
	"strings"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

// rawFunction is one top-level def discovered by the line scanner, before
// its parameter list has been filled in from a real syntax.Parse pass.
type rawFunction struct {
	name        string
	decorators  []kparse.Decorator
	isGenerator bool
	startByte   int
	endByte     int
	startLine   int
	startColumn int
}

// preprocess scans source line by line, extracting decorator lists and
// generator detection for every top-level def, and rewrites the body into
// go.starlark.net-parseable text: decorator lines are replaced by empty
// lines (the line count, and so every later line number, is unchanged;
// byte offsets into the cleaned text shift), `yield EXPR` becomes `__yield__(EXPR)`, and a bare
// `assert EXPR[, MSG]` becomes `__assert__(EXPR[, MSG])` — go.starlark.net
// has no yield statement and no assert statement, so both must be gone
// before the cleaned text reaches syntax.Parse/starlark.ExecFile.
func preprocess(source []byte, path kpath.Path) ([]rawFunction, []byte, []kparse.Diagnostic) {
	lines := strings.Split(string(source), "\n")
	cleaned := make([]string, len(lines))
	copy(cleaned, lines)

	starts := lineStarts(lines)

	var funcs []rawFunction
	var diags []kparse.Diagnostic
	var pending []kparse.Decorator

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)
		content := strings.TrimRight(trimmed, " \t\r")

		if indent != 0 {
			continue // only top-level statements carry decorators/defs
		}
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(content, "@"):
			line1 := i + 1
			col := indent + 1
			dec, ds := parseDecoratorLine(content[1:], path, line1, col)
			diags = append(diags, ds...)
			if dec != nil {
				pending = append(pending, *dec)
			}
			cleaned[i] = ""

		case strings.HasPrefix(content, "def "):
			name, ok := parseDefName(content)
			if !ok {
				pending = nil
				continue
			}
			bodyEnd := i + 1
			for bodyEnd < len(lines) {
				bl := lines[bodyEnd]
				bt := strings.TrimLeft(bl, " \t")
				bi := len(bl) - len(bt)
				bc := strings.TrimRight(bt, " \t\r")
				if bi == 0 && bc != "" && !strings.HasPrefix(bc, "#") {
					break
				}
				bodyEnd++
			}

			isGen := false
			for bi := i + 1; bi < bodyEnd; bi++ {
				bl := lines[bi]
				bt := strings.TrimLeft(bl, " \t")
				bic := len(bl) - len(bt)
				switch {
				case bt == "yield" || strings.HasPrefix(bt, "yield "):
					isGen = true
					cleaned[bi] = strings.Repeat(" ", bic) + rewriteYield(bt)
				case strings.HasPrefix(bt, "assert ") || bt == "assert":
					cleaned[bi] = strings.Repeat(" ", bic) + rewriteAssert(bt)
				}
			}

			endByte := len(source)
			if bodyEnd < len(starts) {
				endByte = starts[bodyEnd]
			}
			funcs = append(funcs, rawFunction{
				name:        name,
				decorators:  pending,
				isGenerator: isGen,
				startByte:   starts[i] + indent,
				endByte:     endByte,
				startLine:   i + 1,
				startColumn: indent + 1,
			})
			pending = nil

		default:
			if len(pending) > 0 {
				diags = append(diags, kparse.Diagnostic{
					Severity: kparse.SeverityWarning,
					Category: "invalid-fixture",
					Message:  "decorator is not followed by a function definition",
					Location: kpath.Location{Path: path, Line: i + 1, Column: 1},
				})
				pending = nil
			}
		}
	}

	return funcs, []byte(strings.Join(cleaned, "\n")), diags
}

// lineStarts returns, for each line index, the byte offset of its first
// character in the joined "\n"-separated source. len(result) == len(lines).
func lineStarts(lines []string) []int {
	starts := make([]int, len(lines))
	offset := 0
	for i, l := range lines {
		starts[i] = offset
		offset += len(l) + 1
	}
	return starts
}

func parseDefName(content string) (string, bool) {
	rest := strings.TrimPrefix(content, "def ")
	rest = strings.TrimLeft(rest, " \t")
	end := strings.IndexAny(rest, "( \t")
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}

func parseDecoratorLine(text string, path kpath.Path, line, col int) (*kparse.Decorator, []kparse.Diagnostic) {
	p := newExprParser(text)
	full, args, kwargs, ok := p.parseDottedCallOrName()
	if !ok {
		return nil, []kparse.Diagnostic{{
			Severity: kparse.SeverityWarning,
			Category: "invalid-fixture",
			Message:  fmt.Sprintf("malformed decorator: %q", strings.TrimSpace(text)),
			Location: kpath.Location{Path: path, Line: line, Column: col},
		}}
	}
	return &kparse.Decorator{
		LeafName: kparse.LeafName(full),
		FullName: full,
		Args:     args,
		Kwargs:   kwargs,
		Range: kpath.Range{
			StartLine:   line,
			StartColumn: col,
		},
	}, nil
}

func rewriteYield(content string) string {
	rest := strings.TrimPrefix(content, "yield")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "__yield__()"
	}
	return "__yield__(" + rest + ")"
}

func rewriteAssert(content string) string {
	rest := strings.TrimPrefix(content, "assert")
	rest = strings.TrimSpace(rest)
	expr, msg, hasMsg := splitTopLevelComma(rest)
	if hasMsg {
		return "__assert__(" + expr + ", " + msg + ")"
	}
	return "__assert__(" + expr + ")"
}

// splitTopLevelComma finds the first comma in s that is not nested inside
// parens/brackets/braces or a string literal, the grammar for `assert
// cond, msg`.
func splitTopLevelComma(s string) (before, after string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return s, "", false
}
