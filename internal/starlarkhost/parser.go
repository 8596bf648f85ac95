package starlarkhost

import (
	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"

	"go.starlark.net/syntax"
)

// Parser implements kparse.Parser over a dialect of Starlark extended, via
// preprocess, with `yield` and bare `assert` statements.
type Parser struct{}

// NewParser returns a ready-to-use Parser. It is stateless: decorator and
// yield detection are line-scanned fresh for every call to Parse.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements kparse.Parser.
func (p *Parser) Parse(source []byte, path kpath.Path) (*kparse.Module, []kparse.Diagnostic) {
	raws, cleaned, diags := preprocess(source, path)

	file, err := syntax.Parse(path.String(), cleaned, 0)
	if err != nil {
		diags = append(diags, kparse.Diagnostic{
			Severity: kparse.SeverityError,
			Category: "invalid-module",
			Message:  err.Error(),
			Location: kpath.Location{Path: path},
		})
		return nil, diags
	}

	var defs []*syntax.DefStmt
	for _, stmt := range file.Stmts {
		if d, ok := stmt.(*syntax.DefStmt); ok {
			defs = append(defs, d)
		}
	}

	mod := &kparse.Module{Path: path}
	for i, raw := range raws {
		var params []kparse.Param
		// Top-level defs in cleaned text appear in the same order they
		// were scanned, since preprocess only ever blanks lines in place
		// and never reorders or removes a def.
		if i < len(defs) && defs[i].Name.Name == raw.name {
			params = paramsFromDef(defs[i])
		}
		mod.Functions = append(mod.Functions, &kparse.FunctionDef{
			Name:        raw.name,
			Params:      params,
			Decorators:  raw.decorators,
			IsGenerator: raw.isGenerator,
			Range: kpath.Range{
				StartByte:   raw.startByte,
				EndByte:     raw.endByte,
				StartLine:   raw.startLine,
				StartColumn: raw.startColumn,
			},
		})
	}

	return mod, diags
}

// paramsFromDef reads a def's formal parameter names in declaration order.
// Starred separators (`*` alone or `*args`) flip every later parameter to
// keyword-only; `**kwargs` itself is not exposed as a bindable name, since
// karva only ever binds named fixtures and parametrize values.
func paramsFromDef(def *syntax.DefStmt) []kparse.Param {
	var params []kparse.Param
	keywordOnly := false
	for _, p := range def.Params {
		switch e := p.(type) {
		case *syntax.Ident:
			params = append(params, kparse.Param{Name: e.Name, KeywordOnly: keywordOnly})
		case *syntax.BinaryExpr:
			if id, ok := e.X.(*syntax.Ident); ok {
				params = append(params, kparse.Param{Name: id.Name, KeywordOnly: keywordOnly})
			}
		case *syntax.UnaryExpr:
			switch e.Op {
			case syntax.STAR:
				keywordOnly = true
				if id, ok := e.X.(*syntax.Ident); ok {
					_ = id // *args itself isn't a bindable fixture name
				}
			case syntax.STARSTAR:
				// **kwargs isn't a bindable fixture name either.
			}
		}
	}
	return params
}
