// Package kparse defines a host-language-independent AST for the shapes
// the execution core actually needs: top-level function definitions, their
// decorator lists, parameter names, yield detection, and source ranges.
//
// It exists because the grammar the core must recognize — decorators above
// a def, and yield as a marker rather than a statement to execute — is not
// uniformly representable across host languages. A concrete Parser
// (internal/starlarkhost, for example) produces this AST from whatever
// source syntax it understands.
package kparse

import "github.com/karvarun/karva/internal/kpath"

// Module is the parsed form of one source file: its top-level function
// definitions in source order. Parse diagnostics are returned separately
// by Parser.Parse.
type Module struct {
	Path      kpath.Path
	Functions []*FunctionDef
}

// FunctionDef is a top-level function definition. Functions nested inside
// another function or a class are not represented here, mirroring the
// restriction that only top-level defs are test/fixture candidates.
type FunctionDef struct {
	Name        string
	Params      []Param
	Decorators  []Decorator
	IsGenerator bool // body contains at least one yield expression
	Range       kpath.Range
}

// Param is one entry in a function's parameter list. Karva only needs the
// name (to resolve fixture dependencies and bind arguments); default
// values and annotations are not modeled.
type Param struct {
	Name     string
	KeywordOnly bool
}

// Decorator is one entry in a function's decorator list: a dotted-call
// expression such as `fixture(scope="module")` or `tags.parametrize(...)`.
// LeafName is the last dotted component, used to classify the decorator
// (`fixture`, `parametrize`, `skip`, ...).
type Decorator struct {
	LeafName string
	FullName string // e.g. "tags.parametrize"
	Args     []Expr
	Kwargs   map[string]Expr
	Range    kpath.Range
}

// ExprKind enumerates the literal/expression shapes a decorator argument,
// parametrize row, or fixture param value can take.
type ExprKind int

const (
	KindIdent ExprKind = iota
	KindAttr
	KindString
	KindInt
	KindFloat
	KindBool
	KindNone
	KindList
	KindTuple
	KindDict
	KindCall
)

// Expr is a structural representation of a literal expression appearing in
// a decorator argument list. It is independent of any host runtime's value
// representation; internal/starlarkhost converts these to runtime values
// at the point a decorator is actually evaluated.
type Expr struct {
	Kind ExprKind

	Ident string // KindIdent, KindAttr (dotted name joined with ".")
	Str   string // KindString
	Int   int64  // KindInt
	Float float64 // KindFloat
	Bool  bool   // KindBool

	Elems []Expr          // KindList, KindTuple
	Pairs []DictPair      // KindDict
	Call  *CallExpr       // KindCall
}

// DictPair is one key/value entry of a KindDict expression.
type DictPair struct {
	Key   Expr
	Value Expr
}

// CallExpr represents a nested call expression inside a decorator argument,
// e.g. the `mark.skip(reason="x")` appearing as an element of a list.
type CallExpr struct {
	FuncName string
	Args     []Expr
	Kwargs   map[string]Expr
}
