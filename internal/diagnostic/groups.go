package diagnostic

import "github.com/karvarun/karva/internal/kparse"

type categoryGroup struct {
	category string
	diags    []kparse.Diagnostic
}

// groupByCategory buckets diags by Category, preserving each category's
// first-seen order and each diagnostic's original order within it.
func groupByCategory(diags []kparse.Diagnostic) []categoryGroup {
	var groups []categoryGroup
	index := map[string]int{}
	for _, d := range diags {
		i, ok := index[d.Category]
		if !ok {
			i = len(groups)
			index[d.Category] = i
			groups = append(groups, categoryGroup{category: d.Category})
		}
		groups[i].diags = append(groups[i].diags, d)
	}
	return groups
}
