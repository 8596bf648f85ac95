package kparse

import "testing"

func TestLeafName(t *testing.T) {
	cases := map[string]string{
		"fixture":            "fixture",
		"tags.parametrize":    "parametrize",
		"mark.usefixtures":    "usefixtures",
		"tags.custom.nested":  "nested",
	}
	for in, want := range cases {
		if got := LeafName(in); got != want {
			t.Errorf("LeafName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNamespace(t *testing.T) {
	if got := Namespace("fixture"); got != "" {
		t.Errorf("Namespace(fixture) = %q, want empty", got)
	}
	if got := Namespace("tags.parametrize"); got != "tags" {
		t.Errorf("Namespace(tags.parametrize) = %q, want tags", got)
	}
}
