package starlarkhost

import (
	"strconv"
	"strings"

	"github.com/karvarun/karva/internal/kparse"
)

// exprParser is a small recursive-descent parser over decorator argument
// text: literal expressions only (strings, numbers, True/False/None,
// lists, tuples, dicts, dotted names, and nested calls), since decorator
// arguments are always source literals, never arbitrary runtime
// expressions.
type exprParser struct {
	s   string
	pos int
}

func newExprParser(s string) *exprParser {
	return &exprParser{s: s}
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *exprParser) peekAt(off int) byte {
	if p.pos+off >= len(p.s) {
		return 0
	}
	return p.s[p.pos+off]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *exprParser) parseIdentRaw() (string, bool) {
	if p.pos >= len(p.s) || !isIdentStart(p.s[p.pos]) {
		return "", false
	}
	start := p.pos
	p.pos++
	for p.pos < len(p.s) && isIdentCont(p.s[p.pos]) {
		p.pos++
	}
	return p.s[start:p.pos], true
}

// parseDottedCallOrName parses a decorator line's body: a dotted name,
// optionally followed by a parenthesized argument list.
func (p *exprParser) parseDottedCallOrName() (full string, args []kparse.Expr, kwargs map[string]kparse.Expr, ok bool) {
	p.skipSpace()
	name, ok := p.parseIdentRaw()
	if !ok {
		return "", nil, nil, false
	}
	full = name
	for {
		p.skipSpace()
		if p.peek() == '.' {
			p.pos++
			p.skipSpace()
			n2, ok := p.parseIdentRaw()
			if !ok {
				return "", nil, nil, false
			}
			full += "." + n2
			continue
		}
		break
	}
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		args, kwargs, ok = p.parseArgList(')')
		if !ok {
			return "", nil, nil, false
		}
	}
	return full, args, kwargs, true
}

// parseArgList parses a comma-separated argument list up to (and
// consuming) close, recognizing "name=expr" kwargs at the top level.
func (p *exprParser) parseArgList(close byte) ([]kparse.Expr, map[string]kparse.Expr, bool) {
	var args []kparse.Expr
	var kwargs map[string]kparse.Expr

	p.skipSpace()
	if p.peek() == close {
		p.pos++
		return args, kwargs, true
	}

	for {
		p.skipSpace()
		save := p.pos
		matched := false
		if name, ok := p.parseIdentRaw(); ok {
			p.skipSpace()
			if p.peek() == '=' && p.peekAt(1) != '=' {
				p.pos++
				val, ok := p.parseExpr()
				if !ok {
					return nil, nil, false
				}
				if kwargs == nil {
					kwargs = map[string]kparse.Expr{}
				}
				kwargs[name] = val
				matched = true
			}
		}
		if !matched {
			p.pos = save
			val, ok := p.parseExpr()
			if !ok {
				return nil, nil, false
			}
			args = append(args, val)
		}

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
			if p.peek() == close {
				p.pos++
				break
			}
			continue
		}
		if p.peek() == close {
			p.pos++
			break
		}
		return nil, nil, false
	}
	return args, kwargs, true
}

func (p *exprParser) parseExpr() (kparse.Expr, bool) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return kparse.Expr{}, false
	}
	c := p.s[p.pos]
	switch {
	case c == '"' || c == '\'':
		return p.parseString()
	case c == '[':
		return p.parseSeq('[', ']', kparse.KindList)
	case c == '(':
		return p.parseSeq('(', ')', kparse.KindTuple)
	case c == '{':
		return p.parseDict()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdentOrCall()
	}
	return kparse.Expr{}, false
}

func (p *exprParser) parseSeq(open, close byte, kind kparse.ExprKind) (kparse.Expr, bool) {
	if p.peek() != open {
		return kparse.Expr{}, false
	}
	p.pos++
	var elems []kparse.Expr
	p.skipSpace()
	if p.peek() == close {
		p.pos++
		return kparse.Expr{Kind: kind}, true
	}
	for {
		v, ok := p.parseExpr()
		if !ok {
			return kparse.Expr{}, false
		}
		elems = append(elems, v)
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
			if p.peek() == close {
				p.pos++
				break
			}
			continue
		}
		if p.peek() == close {
			p.pos++
			break
		}
		return kparse.Expr{}, false
	}
	return kparse.Expr{Kind: kind, Elems: elems}, true
}

func (p *exprParser) parseDict() (kparse.Expr, bool) {
	p.pos++ // consume '{'
	var pairs []kparse.DictPair
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return kparse.Expr{Kind: kparse.KindDict}, true
	}
	for {
		key, ok := p.parseExpr()
		if !ok {
			return kparse.Expr{}, false
		}
		p.skipSpace()
		if p.peek() != ':' {
			return kparse.Expr{}, false
		}
		p.pos++
		val, ok := p.parseExpr()
		if !ok {
			return kparse.Expr{}, false
		}
		pairs = append(pairs, kparse.DictPair{Key: key, Value: val})
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				break
			}
			continue
		}
		if p.peek() == '}' {
			p.pos++
			break
		}
		return kparse.Expr{}, false
	}
	return kparse.Expr{Kind: kparse.KindDict, Pairs: pairs}, true
}

func (p *exprParser) parseNumber() (kparse.Expr, bool) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	isFloat := false
	if p.peek() == '.' {
		isFloat = true
		p.pos++
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
	}
	if p.peek() == 'e' || p.peek() == 'E' {
		isFloat = true
		p.pos++
		if p.peek() == '+' || p.peek() == '-' {
			p.pos++
		}
		for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
			p.pos++
		}
	}
	text := p.s[start:p.pos]
	if text == "" || text == "-" {
		return kparse.Expr{}, false
	}
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return kparse.Expr{}, false
		}
		return kparse.Expr{Kind: kparse.KindFloat, Float: f}, true
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return kparse.Expr{}, false
	}
	return kparse.Expr{Kind: kparse.KindInt, Int: n}, true
}

func (p *exprParser) parseString() (kparse.Expr, bool) {
	quote := p.s[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '\\' && p.pos+1 < len(p.s) {
			p.pos++
			switch p.s[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(p.s[p.pos])
			}
			p.pos++
			continue
		}
		if c == quote {
			p.pos++
			return kparse.Expr{Kind: kparse.KindString, Str: b.String()}, true
		}
		b.WriteByte(c)
		p.pos++
	}
	return kparse.Expr{}, false // unterminated string
}

func (p *exprParser) parseIdentOrCall() (kparse.Expr, bool) {
	name, ok := p.parseIdentRaw()
	if !ok {
		return kparse.Expr{}, false
	}
	full := name
	for p.peek() == '.' {
		p.pos++
		n2, ok := p.parseIdentRaw()
		if !ok {
			return kparse.Expr{}, false
		}
		full += "." + n2
	}

	switch full {
	case "True":
		return kparse.Expr{Kind: kparse.KindBool, Bool: true}, true
	case "False":
		return kparse.Expr{Kind: kparse.KindBool, Bool: false}, true
	case "None":
		return kparse.Expr{Kind: kparse.KindNone}, true
	}

	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		args, kwargs, ok := p.parseArgList(')')
		if !ok {
			return kparse.Expr{}, false
		}
		return kparse.Expr{Kind: kparse.KindCall, Call: &kparse.CallExpr{FuncName: full, Args: args, Kwargs: kwargs}}, true
	}

	kind := kparse.KindIdent
	if strings.Contains(full, ".") {
		kind = kparse.KindAttr
	}
	return kparse.Expr{Kind: kind, Ident: full}, true
}
