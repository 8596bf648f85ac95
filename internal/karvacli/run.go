// Package karvacli implements the karva binary: config discovery, a
// central discovery pass used to partition work, orchestration of
// karva-worker children, result aggregation, and the snapshot management
// subcommands.
package karvacli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/karvarun/karva/internal/kcli"
	"github.com/karvarun/karva/internal/version"
)

// Run is the entry point cmd/karva's main calls into.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && (args[0] == "--version" || args[0] == "-version") {
		kcli.Writef(stdout, "karva %s\n", version.String())
		return kcli.ExitOK
	}

	cmds := []kcli.Command{
		{Name: "test", Summary: "discover and run tests across worker processes", Run: runTest},
		{Name: "snapshot", Summary: "manage pending and stale snapshot files", Run: runSnapshot},
	}
	return kcli.Dispatch("karva", cmds, args, stdout, stderr, usage)
}

func usage(w io.Writer) {
	kcli.Writeln(w, "Usage: karva <command> [flags] [args]")
	kcli.Writeln(w)
	kcli.Writeln(w, "Commands:")
	kcli.Writeln(w, "  test       discover and run tests")
	kcli.Writeln(w, "  snapshot   accept, reject, review, or prune snapshot files")
	kcli.Writeln(w)
	kcli.Writeln(w, "  --version  print version and exit")
}

// workerBinaryPath locates the karva-worker executable: $KARVA_WORKER_PATH
// if set (this rewrite's substitute for a Python virtualenv's bin
// directory, which the original relied on to find its worker process),
// otherwise a binary named karva-worker next to the running executable.
func workerBinaryPath() (string, error) {
	if p := os.Getenv("KARVA_WORKER_PATH"); p != "" {
		return p, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating karva-worker: %w", err)
	}
	name := "karva-worker"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(self), name)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("karva-worker not found next to %s and $KARVA_WORKER_PATH is unset: %w", self, err)
	}
	return candidate, nil
}
