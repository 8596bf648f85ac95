package ktags

import "github.com/karvarun/karva/internal/kruntime"

// TagKind discriminates the variants of Tag.
type TagKind int

const (
	TagParametrize TagKind = iota
	TagUseFixtures
	TagSkip
	TagExpectFail
	TagCustom
)

// Tag is one decorator-derived entry on a discovered function. Order is
// preserved in the order decorators were applied (top to bottom of the
// source decorator list), since that order determines parametrize
// cartesian-product numbering.
type Tag struct {
	Kind TagKind

	// TagParametrize
	ArgNames []string
	Rows     [][]kruntime.Value

	// TagUseFixtures
	FixtureNames []string

	// TagSkip, TagExpectFail
	Condition bool
	Reason    string

	// TagCustom
	CustomName     string
	CustomPositional []kruntime.Value
	CustomKeyword    map[string]kruntime.Value
}

// Tags is the ordered decorator-tag sequence attached to a discovered
// function.
type Tags []Tag

// Parametrizes returns every TagParametrize entry in decorator order.
func (t Tags) Parametrizes() []Tag {
	var out []Tag
	for _, tag := range t {
		if tag.Kind == TagParametrize {
			out = append(out, tag)
		}
	}
	return out
}

// UseFixtureNames returns the union, in order, of every TagUseFixtures
// entry's fixture names.
func (t Tags) UseFixtureNames() []string {
	var out []string
	for _, tag := range t {
		if tag.Kind == TagUseFixtures {
			out = append(out, tag.FixtureNames...)
		}
	}
	return out
}

// Skip returns the first TagSkip entry and true if present.
func (t Tags) Skip() (Tag, bool) {
	for _, tag := range t {
		if tag.Kind == TagSkip {
			return tag, true
		}
	}
	return Tag{}, false
}

// ExpectFail returns the first TagExpectFail entry and true if present.
func (t Tags) ExpectFail() (Tag, bool) {
	for _, tag := range t {
		if tag.Kind == TagExpectFail {
			return tag, true
		}
	}
	return Tag{}, false
}

// CustomNames returns every TagCustom entry's name, in decorator order,
// the set a tag expression's identifiers are matched against.
func (t Tags) CustomNames() []string {
	var out []string
	for _, tag := range t {
		if tag.Kind == TagCustom {
			out = append(out, tag.CustomName)
		}
	}
	return out
}

// ParametrizeParamNames returns the union of all Parametrize arg names
// across every TagParametrize entry, in decorator order, matching the
// normalizer's `parametrize_param_names` computation.
func (t Tags) ParametrizeParamNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range t.Parametrizes() {
		for _, n := range tag.ArgNames {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
