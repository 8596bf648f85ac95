package starlarkhost

import (
	"fmt"

	"github.com/karvarun/karva/internal/kruntime"

	"go.starlark.net/starlark"
)

// toStarlark converts a kruntime.Value into a starlark.Value. Incoming
// values are a mix of plain Go literals produced by ktags.ExprToValue
// (string/int64/float64/bool/nil/[]kruntime.Value/map[string]kruntime.Value)
// and values that are already starlark.Value, returned by an earlier
// fixture call in the same dependency chain and passed straight through
// unconverted.
func toStarlark(v kruntime.Value) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch t := v.(type) {
	case starlark.Value:
		return t, nil
	case string:
		return starlark.String(t), nil
	case int:
		return starlark.MakeInt(t), nil
	case int64:
		return starlark.MakeInt64(t), nil
	case float64:
		return starlark.Float(t), nil
	case bool:
		return starlark.Bool(t), nil
	case []kruntime.Value:
		elems := make([]starlark.Value, len(t))
		for i, e := range t {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]kruntime.Value:
		d := starlark.NewDict(len(t))
		for k, val := range t {
			sv, err := toStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("starlarkhost: unsupported kwarg value type %T", v)
	}
}

func toStarlarkKwargs(kwargs kruntime.Kwargs) ([]starlark.Tuple, error) {
	out := make([]starlark.Tuple, 0, len(kwargs))
	for k, v := range kwargs {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, err
		}
		out = append(out, starlark.Tuple{starlark.String(k), sv})
	}
	return out, nil
}

// missingRequired reports the names of fn's parameters that are neither
// supplied in kwargs nor have a default value in the def itself.
func missingRequired(fn *starlark.Function, kwargs kruntime.Kwargs) []string {
	var missing []string
	n := fn.NumParams()
	for i := 0; i < n; i++ {
		name, _ := fn.Param(i)
		if _, ok := kwargs[name]; ok {
			continue
		}
		if fn.ParamDefault(i) != nil {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}

// display renders a kruntime.Value for a snapshot body or diagnostic info
// line. Values that are already starlark.Value use Starlark's own
// str()-equivalent rendering; anything else falls back to fmt.
func display(v kruntime.Value) string {
	if v == nil {
		return "None"
	}
	if sv, ok := v.(starlark.Value); ok {
		if s, ok := starlark.AsString(sv); ok {
			return s
		}
		return sv.String()
	}
	return fmt.Sprintf("%v", v)
}
