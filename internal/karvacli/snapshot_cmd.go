package karvacli

import (
	"flag"
	"io"
	"os"

	"github.com/karvarun/karva/internal/kcli"
	"github.com/karvarun/karva/internal/snapshot"
	"github.com/karvarun/karva/internal/starlarkhost"
)

func runSnapshot(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		snapshotUsage(stderr)
		return kcli.ExitConfigError
	}

	action := args[0]
	rest := args[1:]

	switch action {
	case "pending":
		return snapshotPending(rest, stdout, stderr)
	case "accept":
		return snapshotAccept(rest, stdout, stderr)
	case "reject":
		return snapshotReject(rest, stdout, stderr)
	case "review":
		return snapshotReview(rest, stdout, stderr)
	case "prune":
		return snapshotPrune(rest, stdout, stderr)
	case "delete":
		return snapshotDelete(rest, stdout, stderr)
	default:
		kcli.Writef(stderr, "karva snapshot: unknown action %q\n", action)
		snapshotUsage(stderr)
		return kcli.ExitConfigError
	}
}

func snapshotUsage(w io.Writer) {
	kcli.Writeln(w, "Usage: karva snapshot {pending|accept|reject|review|prune|delete} [PATH] [flags]")
}

func snapshotRoot(args []string, fs *flag.FlagSet) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() > 0 {
		return fs.Arg(0), nil
	}
	return ".", nil
}

func snapshotPending(args []string, stdout, stderr io.Writer) int {
	fs := kcli.NewFlagSet("snapshot pending", stderr)
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}
	files, err := snapshot.Pending(root)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	for _, f := range files {
		kcli.Writeln(stdout, f)
	}
	kcli.Writef(stdout, "%d pending snapshot(s)\n", len(files))
	return kcli.ExitOK
}

func snapshotAccept(args []string, stdout, stderr io.Writer) int {
	fs := kcli.NewFlagSet("snapshot accept", stderr)
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}
	n, err := snapshot.Accept(root)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	kcli.Writef(stdout, "%d snapshot(s) accepted\n", n)
	return kcli.ExitOK
}

func snapshotReject(args []string, stdout, stderr io.Writer) int {
	fs := kcli.NewFlagSet("snapshot reject", stderr)
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}
	n, err := snapshot.Reject(root)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	kcli.Writef(stdout, "%d snapshot(s) rejected\n", n)
	return kcli.ExitOK
}

func snapshotReview(args []string, stdout, stderr io.Writer) int {
	fs := kcli.NewFlagSet("snapshot review", stderr)
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}
	accepted, rejected, err := snapshot.Review(root, os.Stdin, stdout)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	kcli.Writef(stdout, "%d accepted, %d rejected\n", accepted, rejected)
	return kcli.ExitOK
}

func snapshotPrune(args []string, stdout, stderr io.Writer) int {
	var dryRun bool
	fs := kcli.NewFlagSet("snapshot prune", stderr)
	fs.BoolVar(&dryRun, "dry-run", false, "list what would be removed without removing it")
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}

	removed, err := snapshot.Prune(root, starlarkhost.NewParser(), ".py", dryRun)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	for _, r := range removed {
		kcli.Writeln(stdout, r)
	}
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	kcli.Writef(stdout, "%s %d stale snapshot(s)\n", verb, len(removed))
	return kcli.ExitOK
}

func snapshotDelete(args []string, stdout, stderr io.Writer) int {
	var dryRun bool
	fs := kcli.NewFlagSet("snapshot delete", stderr)
	fs.BoolVar(&dryRun, "dry-run", false, "list what would be removed without removing it")
	root, err := snapshotRoot(args, fs)
	if err != nil {
		return kcli.ExitConfigError
	}
	removed, err := snapshot.Delete(root, dryRun)
	if err != nil {
		kcli.Writef(stderr, "karva snapshot: %v\n", err)
		return kcli.ExitConfigError
	}
	for _, r := range removed {
		kcli.Writeln(stdout, r)
	}
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	kcli.Writef(stdout, "%s %d snapshot file(s)\n", verb, len(removed))
	return kcli.ExitOK
}
