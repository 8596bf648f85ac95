package ktags

import (
	"strconv"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kruntime"
)

// ExprToValue converts a structural decorator-argument expression into a
// kruntime.Value. Decorator arguments are always source literals (lists of
// parametrize values, skip reasons, fixture params), never arbitrary
// runtime expressions, so this conversion never needs to invoke a Runtime.
func ExprToValue(e kparse.Expr) kruntime.Value {
	switch e.Kind {
	case kparse.KindString:
		return e.Str
	case kparse.KindInt:
		return e.Int
	case kparse.KindFloat:
		return e.Float
	case kparse.KindBool:
		return e.Bool
	case kparse.KindNone:
		return nil
	case kparse.KindIdent, kparse.KindAttr:
		return identValue(e.Ident)
	case kparse.KindList, kparse.KindTuple:
		vals := make([]kruntime.Value, len(e.Elems))
		for i, el := range e.Elems {
			vals[i] = ExprToValue(el)
		}
		return vals
	case kparse.KindDict:
		m := make(map[string]kruntime.Value, len(e.Pairs))
		for _, p := range e.Pairs {
			m[stringify(ExprToValue(p.Key))] = ExprToValue(p.Value)
		}
		return m
	case kparse.KindCall:
		return e.Call
	default:
		return nil
	}
}

// identValue resolves bare identifiers that can legally appear as
// decorator-argument literals: True/False/None spelled as idents by a
// parser that does not fold them into KindBool/KindNone itself.
func identValue(name string) kruntime.Value {
	switch name {
	case "True":
		return true
	case "False":
		return false
	case "None":
		return nil
	default:
		return name
	}
}

func stringify(v kruntime.Value) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
