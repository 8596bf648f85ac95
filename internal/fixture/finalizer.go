package fixture

import (
	"github.com/karvarun/karva/internal/ktags"
	"github.com/karvarun/karva/internal/kruntime"
)

// Finalizer is the teardown half of a generator fixture, queued after its
// first yield. Completing it means advancing the generator once more and
// observing completion (StopIteration).
type Finalizer struct {
	FixtureName string
	Generator   kruntime.Generator
	Scope       ktags.FixtureScope
}
