// Package cmdtest provides a testscript-based test harness for the karva
// CLI binaries.
//
// It uses txtar format test files to specify input files and expected
// outputs, making it easy to write comprehensive CLI tests.
//
// Example test file (cmd/karva/testdata/basic.txtar):
//
//	exec karva test .
//	stdout 'test result: ok'
//
//	-- test_example.py --
//	def test_passes():
//	    assert True
package cmdtest

import (
	"io"
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/karvarun/karva/internal/karvacli"
	"github.com/karvarun/karva/internal/workercli"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
	})
}

// Main is the TestMain function that should be called from test files.
// It registers the karva binaries as testscript commands so a .txtar
// script can `exec karva ...` / `exec karva-worker ...` against an
// in-process build rather than a compiled binary on PATH.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"karva":        wrapRun(karvacli.Run),
		"karva-worker": wrapRun(workercli.Run),
	}))
}

// wrapRun adapts a Run(args, stdout, stderr) int function to the func()
// int shape testscript.RunMain expects, reading args from os.Args[1:]
// and writing to the process's own stdout/stderr.
func wrapRun(run func(args []string, stdout, stderr io.Writer) int) func() int {
	return func() int {
		return run(os.Args[1:], os.Stdout, os.Stderr)
	}
}
