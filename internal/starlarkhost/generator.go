package starlarkhost

import "go.starlark.net/starlark"

// generatorLocalKey is the starlark.Thread.Local key the active generator
// is stashed under, so the __yield__ builtin running inside the
// generator's own goroutine can find its way back to the channel pair.
const generatorLocalKey = "karva-generator"

// genStep is one message sent from a generator's goroutine to the
// Advance caller: either a yielded value, or the function's return
// (Done, possibly carrying an error if the body raised).
type genStep struct {
	value starlark.Value
	done  bool
	err   error
}

// generator emulates go.starlark.net's lack of a yield statement by
// running the generator function body on its own goroutine, suspended on
// a pair of unbuffered channels at every __yield__ call. This is the
// standard Go pattern for giving coroutine semantics to a callee that
// can't suspend itself: the goroutine blocks on resume instead of
// returning, and the caller (Advance) blocks on out instead of polling.
type generator struct {
	out    chan genStep
	resume chan struct{}

	started  bool
	finished bool
	run      func()
}

func newGenerator() *generator {
	return &generator{
		out:    make(chan genStep),
		resume: make(chan struct{}),
	}
}
