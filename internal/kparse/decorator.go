package kparse

import "strings"

// LeafName returns the last dotted component of a decorator's full name,
// e.g. LeafName("tags.parametrize") == "parametrize" and
// LeafName("fixture") == "fixture". Classification in internal/ktags keys
// off this, matching the leaf-name matching rule regardless of whether the
// decorator was spelled bare, as `tags.X`, or as `mark.X`.
func LeafName(full string) string {
	idx := strings.LastIndex(full, ".")
	if idx < 0 {
		return full
	}
	return full[idx+1:]
}

// Namespace returns the portion of a dotted decorator name before the leaf,
// e.g. Namespace("tags.parametrize") == "tags", Namespace("fixture") == "".
func Namespace(full string) string {
	idx := strings.LastIndex(full, ".")
	if idx < 0 {
		return ""
	}
	return full[:idx]
}
