package ktags

import (
	"fmt"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
)

// DynamicScopeResolver evaluates a callable `scope=` argument at discovery
// time, the way spec.md describes: invoked with (fixture_name, config=None)
// and expected to return one of the four scope strings.
type DynamicScopeResolver func(fixtureName string, scopeCallable kparse.Expr) (string, error)

// Classify inspects one discovered function's decorator list and produces
// either a DiscoveredFixture (if a `fixture` decorator is present) or a
// Tags sequence for everything else. diags accumulates invalid-fixture
// diagnostics (bad decorator args, invalid scope).
func Classify(
	fn *kparse.FunctionDef,
	module kpath.ModulePath,
	file kpath.Path,
	callable kruntime.Callable,
	resolveScope DynamicScopeResolver,
) (fixture *DiscoveredFixture, tags Tags, diags []kparse.Diagnostic) {

	qname := kpath.QualifiedFunctionName{Module: module, Function: fn.Name}
	loc := locationOf(fn, file)

	for _, dec := range fn.Decorators {
		leaf := dec.LeafName
		ns := kparse.Namespace(dec.FullName)

		switch {
		case leaf == "fixture" && ns == "":
			f, ds := classifyFixtureDecorator(fn, qname, callable, loc, dec, resolveScope)
			diags = append(diags, ds...)
			if f != nil {
				fixture = f
			}

		case ns == "tags" || ns == "mark":
			tag, ds := classifyTagDecorator(leaf, dec, loc)
			diags = append(diags, ds...)
			if tag != nil {
				tags = append(tags, *tag)
			}

		default:
			// Unrecognized decorator: ignored by discovery, preserved on
			// the function only implicitly (fn.Decorators itself).
		}
	}

	if fixture == nil {
		return nil, tags, diags
	}
	fixture.RequiredFixtures = paramNames(fn, true)
	fixture.UsesRequest = hasParam(fn, "request")
	return fixture, tags, diags
}

func hasParam(fn *kparse.FunctionDef, name string) bool {
	for _, p := range fn.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func classifyFixtureDecorator(
	fn *kparse.FunctionDef,
	qname QualifiedName,
	callable kruntime.Callable,
	loc kpath.Location,
	dec kparse.Decorator,
	resolveScope DynamicScopeResolver,
) (*DiscoveredFixture, []kparse.Diagnostic) {
	f := &DiscoveredFixture{
		Name:        qname,
		Scope:       ScopeFunction,
		IsGenerator: fn.IsGenerator,
		Callable:    callable,
		Location:    loc,
	}
	var diags []kparse.Diagnostic

	if nameExpr, ok := dec.Kwargs["name"]; ok {
		if nameExpr.Kind == kparse.KindString {
			f.Name = kpath.QualifiedFunctionName{Module: qname.Module, Function: nameExpr.Str}
		}
	}

	if autoExpr, ok := dec.Kwargs["autouse"]; ok {
		if autoExpr.Kind == kparse.KindBool {
			f.Autouse = autoExpr.Bool
		}
	}

	if paramsExpr, ok := dec.Kwargs["params"]; ok {
		switch paramsExpr.Kind {
		case kparse.KindList, kparse.KindTuple:
			vals := make([]kruntime.Value, len(paramsExpr.Elems))
			for i, e := range paramsExpr.Elems {
				vals[i] = ExprToValue(e)
			}
			f.Params = vals
		default:
			diags = append(diags, invalidFixtureDiag(loc, fmt.Sprintf(
				"fixture %s: params must be a list or tuple", f.Name)))
		}
	}

	if scopeExpr, ok := dec.Kwargs["scope"]; ok {
		scope, diag := resolveFixtureScope(f.Name.String(), scopeExpr, loc, resolveScope)
		if diag != nil {
			diags = append(diags, *diag)
			return nil, diags
		}
		f.Scope = scope
	}

	return f, diags
}

func resolveFixtureScope(
	fixtureName string,
	scopeExpr kparse.Expr,
	loc kpath.Location,
	resolveScope DynamicScopeResolver,
) (FixtureScope, *kparse.Diagnostic) {
	switch scopeExpr.Kind {
	case kparse.KindString:
		scope, ok := ParseScope(scopeExpr.Str)
		if !ok {
			d := invalidFixtureDiag(loc, fmt.Sprintf("fixture %s: invalid scope %q", fixtureName, scopeExpr.Str))
			return 0, &d
		}
		return scope, nil
	case kparse.KindCall, kparse.KindIdent:
		if resolveScope == nil {
			d := invalidFixtureDiag(loc, fmt.Sprintf("fixture %s: dynamic scope requires a resolver", fixtureName))
			return 0, &d
		}
		s, err := resolveScope(fixtureName, scopeExpr)
		if err != nil {
			d := invalidFixtureDiag(loc, fmt.Sprintf("fixture %s: scope callback failed: %v", fixtureName, err))
			return 0, &d
		}
		scope, ok := ParseScope(s)
		if !ok {
			d := invalidFixtureDiag(loc, fmt.Sprintf("fixture %s: scope callback returned invalid scope %q", fixtureName, s))
			return 0, &d
		}
		return scope, nil
	default:
		d := invalidFixtureDiag(loc, fmt.Sprintf("fixture %s: unsupported scope expression", fixtureName))
		return 0, &d
	}
}

func classifyTagDecorator(leaf string, dec kparse.Decorator, loc kpath.Location) (*Tag, []kparse.Diagnostic) {
	switch leaf {
	case "parametrize":
		return classifyParametrize(dec, loc)
	case "use_fixtures", "usefixtures":
		var names []string
		for _, a := range dec.Args {
			if a.Kind == kparse.KindString {
				names = append(names, a.Str)
			}
		}
		return &Tag{Kind: TagUseFixtures, FixtureNames: names}, nil
	case "skip":
		return classifySkip(dec), nil
	case "expect_fail", "xfail":
		return classifyExpectFail(dec), nil
	default:
		tag := Tag{
			Kind:       TagCustom,
			CustomName: leaf,
		}
		for _, a := range dec.Args {
			tag.CustomPositional = append(tag.CustomPositional, ExprToValue(a))
		}
		if len(dec.Kwargs) > 0 {
			tag.CustomKeyword = make(map[string]kruntime.Value, len(dec.Kwargs))
			for k, v := range dec.Kwargs {
				tag.CustomKeyword[k] = ExprToValue(v)
			}
		}
		return &tag, nil
	}
}

func classifyParametrize(dec kparse.Decorator, loc kpath.Location) (*Tag, []kparse.Diagnostic) {
	if len(dec.Args) < 2 {
		return nil, []kparse.Diagnostic{invalidFixtureDiag(loc, "parametrize requires arg_names and values")}
	}
	argNames := parametrizeArgNames(dec.Args[0])
	rows := parametrizeRows(dec.Args[1], len(argNames))
	return &Tag{Kind: TagParametrize, ArgNames: argNames, Rows: rows}, nil
}

func parametrizeArgNames(e kparse.Expr) []string {
	if e.Kind == kparse.KindString {
		// may be a single name, or a comma-separated string.
		return splitCommaNames(e.Str)
	}
	if e.Kind == kparse.KindTuple || e.Kind == kparse.KindList {
		var names []string
		for _, el := range e.Elems {
			if el.Kind == kparse.KindString {
				names = append(names, el.Str)
			}
		}
		return names
	}
	return nil
}

func splitCommaNames(s string) []string {
	var names []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			name := trimSpace(s[start:i])
			if name != "" {
				names = append(names, name)
			}
			start = i + 1
		}
	}
	if len(names) == 0 {
		return []string{s}
	}
	return names
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

func parametrizeRows(e kparse.Expr, argCount int) [][]kruntime.Value {
	if e.Kind != kparse.KindList && e.Kind != kparse.KindTuple {
		return nil
	}
	rows := make([][]kruntime.Value, 0, len(e.Elems))
	for _, row := range e.Elems {
		if argCount == 1 {
			rows = append(rows, []kruntime.Value{ExprToValue(row)})
			continue
		}
		if row.Kind == kparse.KindList || row.Kind == kparse.KindTuple {
			vals := make([]kruntime.Value, len(row.Elems))
			for i, el := range row.Elems {
				vals[i] = ExprToValue(el)
			}
			rows = append(rows, vals)
		} else {
			rows = append(rows, []kruntime.Value{ExprToValue(row)})
		}
	}
	return rows
}

func classifySkip(dec kparse.Decorator) *Tag {
	tag := &Tag{Kind: TagSkip, Condition: true}
	if len(dec.Args) > 0 {
		tag.Condition = truthy(ExprToValue(dec.Args[0]))
	}
	if cond, ok := dec.Kwargs["condition"]; ok {
		tag.Condition = truthy(ExprToValue(cond))
	}
	if reason, ok := dec.Kwargs["reason"]; ok && reason.Kind == kparse.KindString {
		tag.Reason = reason.Str
	} else if len(dec.Args) > 1 && dec.Args[1].Kind == kparse.KindString {
		tag.Reason = dec.Args[1].Str
	}
	return tag
}

func classifyExpectFail(dec kparse.Decorator) *Tag {
	tag := &Tag{Kind: TagExpectFail, Condition: true}
	if len(dec.Args) > 0 {
		tag.Condition = truthy(ExprToValue(dec.Args[0]))
	}
	if cond, ok := dec.Kwargs["condition"]; ok {
		tag.Condition = truthy(ExprToValue(cond))
	}
	if reason, ok := dec.Kwargs["reason"]; ok && reason.Kind == kparse.KindString {
		tag.Reason = reason.Str
	}
	return tag
}

func truthy(v kruntime.Value) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case int64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func paramNames(fn *kparse.FunctionDef, excludeRequest bool) []string {
	var out []string
	for _, p := range fn.Params {
		if excludeRequest && p.Name == "request" {
			continue
		}
		out = append(out, p.Name)
	}
	return out
}

func locationOf(fn *kparse.FunctionDef, file kpath.Path) kpath.Location {
	return kpath.Location{
		Path:   file,
		Line:   fn.Range.StartLine,
		Column: fn.Range.StartColumn,
		Range:  fn.Range,
	}
}

func invalidFixtureDiag(loc kpath.Location, msg string) kparse.Diagnostic {
	return kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "invalid-fixture",
		Message:  msg,
		Location: loc,
	}
}
