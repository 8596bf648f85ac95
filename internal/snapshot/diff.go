package snapshot

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// formatDiff renders a unified diff between the existing snapshot body and
// a newly rendered value.
func formatDiff(expected, actual string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "snapshot",
		ToFile:   "actual",
		Context:  3,
	}
	result, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- snapshot\n%s\n+++ actual\n%s", expected, actual)
	}
	return result
}
