package normalize

import (
	"strconv"

	"github.com/karvarun/karva/internal/kruntime"
)

// stringifier renders a kruntime.Value to the compact token used inside
// display names (test_add[x=1]) and synthetic fixture names. Integers,
// booleans, and strings render as their literal text; floats render with
// full precision; every other shape renders as "<type_name>N", where N is
// a per-type counter that increments on every non-primitive value rendered
// by this stringifier, guaranteeing uniqueness within one normalization
// run. Lists and dicts are not comparable in Go, so occurrences are not
// deduplicated by value identity — every occurrence gets the next index.
type stringifier struct {
	counters map[string]int
}

func newStringifier() *stringifier {
	return &stringifier{counters: make(map[string]int)}
}

func (s *stringifier) stringify(v kruntime.Value) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	default:
		typeName := pythonishTypeName(v)
		idx := s.counters[typeName]
		s.counters[typeName] = idx + 1
		return typeName + strconv.Itoa(idx)
	}
}

func pythonishTypeName(v kruntime.Value) string {
	switch v.(type) {
	case []kruntime.Value:
		return "list"
	case map[string]kruntime.Value:
		return "dict"
	default:
		return "object"
	}
}
