package snapshot

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
)

// Filter is one regex-replacement pair applied to a captured command's
// stdout/stderr before it's formatted as a snapshot value.
type Filter struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// CmdResult is a captured child process outcome, already filtered.
type CmdResult struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

// RunCommand executes name with args, capturing stdout/stderr and applying
// filters to both before returning. A non-zero exit from the child is not
// a Go error: it's reported through CmdResult.Success/ExitCode so the
// caller can format it as a snapshot value regardless of outcome.
func RunCommand(name string, args []string, filters []Filter) (CmdResult, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	success := true
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return CmdResult{}, fmt.Errorf("run %s: %w", name, runErr)
		}
		exitCode = exitErr.ExitCode()
		success = false
	}

	return CmdResult{
		Success:  success,
		ExitCode: exitCode,
		Stdout:   applyFilters(stdout.String(), filters),
		Stderr:   applyFilters(stderr.String(), filters),
	}, nil
}

func applyFilters(s string, filters []Filter) string {
	for _, f := range filters {
		s = f.Pattern.ReplaceAllString(s, f.Replacement)
	}
	return s
}

// FormatCmdResult renders a CmdResult as the snapshot value text for
// assert_cmd_snapshot.
func FormatCmdResult(r CmdResult) string {
	return fmt.Sprintf(
		"success: %t\nexit_code: %d\n----- stdout -----\n%s\n----- stderr -----\n%s",
		r.Success, r.ExitCode, r.Stdout, r.Stderr,
	)
}
