package testfilter

import (
	"testing"

	"github.com/karvarun/karva/internal/ktags"
)

func tagged(names ...string) ktags.Tags {
	var tags ktags.Tags
	for _, n := range names {
		tags = append(tags, ktags.Tag{Kind: ktags.TagCustom, CustomName: n})
	}
	return tags
}

func TestEmptyFilterAllowsEverything(t *testing.T) {
	f, err := New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Empty() {
		t.Fatal("expected Empty() true for no flags")
	}
	if !f.Allows("mod.test_x", nil) {
		t.Fatal("empty filter should allow any test")
	}
}

func TestTagFilterSelectsMatchingCustomTag(t *testing.T) {
	f, err := New([]string{"slow"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Allows("mod.test_x", tagged("slow")) {
		t.Fatal("expected tagged(slow) to pass -t slow")
	}
	if f.Allows("mod.test_x", tagged("fast")) {
		t.Fatal("expected tagged(fast) to fail -t slow")
	}
}

func TestRepeatedTagFlagsOr(t *testing.T) {
	f, err := New([]string{"slow", "flaky"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Allows("mod.test_x", tagged("flaky")) {
		t.Fatal("expected -t slow -t flaky to OR")
	}
	if f.Allows("mod.test_x", tagged("other")) {
		t.Fatal("expected no match for an unrelated tag")
	}
}

func TestNameFilterSelectsMatchingPattern(t *testing.T) {
	f, err := New(nil, []string{"^mod\\.test_a"})
	if err != nil {
		t.Fatal(err)
	}
	if !f.Allows("mod.test_a", nil) {
		t.Fatal("expected mod.test_a to match ^mod\\.test_a")
	}
	if f.Allows("mod.test_b", nil) {
		t.Fatal("expected mod.test_b not to match ^mod\\.test_a")
	}
}

func TestTagAndNameFiltersAnd(t *testing.T) {
	f, err := New([]string{"slow"}, []string{"test_a"})
	if err != nil {
		t.Fatal(err)
	}
	if f.Allows("mod.test_a", tagged("fast")) {
		t.Fatal("name matches but tag doesn't: should be rejected")
	}
	if f.Allows("mod.test_b", tagged("slow")) {
		t.Fatal("tag matches but name doesn't: should be rejected")
	}
	if !f.Allows("mod.test_a", tagged("slow")) {
		t.Fatal("both match: should be allowed")
	}
}

func TestNewRejectsInvalidTagExpression(t *testing.T) {
	if _, err := New([]string{"and and"}, nil); err == nil {
		t.Fatal("expected an error for a malformed tag expression")
	}
}

func TestNewRejectsInvalidRegexp(t *testing.T) {
	if _, err := New(nil, []string{"("}); err == nil {
		t.Fatal("expected an error for an unbalanced regexp")
	}
}
