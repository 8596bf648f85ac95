// Package snapshot implements the file and inline snapshot codec: naming,
// the header/body grammar, comparison against a value already rendered by
// a kruntime.Runtime, the .snap.new pending-file lifecycle, and the
// maintenance sub-commands (accept/reject/pending/review/prune/delete).
package snapshot

import "fmt"

// Key identifies one file-snapshot's storage location within a test
// module's snapshots directory.
type Key struct {
	// ModuleLeaf is the test module's file name without extension, e.g.
	// "test_math" for "test_math.py".
	ModuleLeaf string
	// TestName is the test's display name (may already carry a
	// "[param=value]" fingerprint for a parametrized test).
	TestName string
	// ExplicitName is the name= argument to assert_snapshot, empty when
	// the call site left it unnamed.
	ExplicitName string
	// Unnamed is the 1-based ordinal of this call among the test's
	// unnamed assert_snapshot calls. Ignored when ExplicitName is set.
	Unnamed int
}

// FileName renders the on-disk basename, without directory:
// "<module_leaf>__<test_name>[--<explicit_name>][-<N>].snap". The
// numeric suffix is only emitted past the first unnamed snapshot.
func (k Key) FileName() string {
	name := fmt.Sprintf("%s__%s", k.ModuleLeaf, k.TestName)
	switch {
	case k.ExplicitName != "":
		name += "--" + k.ExplicitName
	case k.Unnamed > 1:
		name += fmt.Sprintf("-%d", k.Unnamed)
	}
	return name + ".snap"
}

// Sequencer hands out the Unnamed ordinal for a test's successive unnamed
// assert_snapshot calls. One Sequencer is scoped to a single test
// invocation; a fresh test gets a fresh Sequencer.
type Sequencer struct {
	n int
}

// Next returns the next unnamed ordinal, starting at 1. Calls for a named
// snapshot (explicit != "") don't consume an ordinal.
func (s *Sequencer) Next(explicit string) int {
	if explicit != "" {
		return 0
	}
	s.n++
	return s.n
}
