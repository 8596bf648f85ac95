package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// findPending walks root looking for "*.snap.new" files, returning paths
// in lexical order for deterministic output.
func findPending(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".snap.new") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// Pending lists every pending snapshot path under root.
func Pending(root string) ([]string, error) {
	return findPending(root)
}

// Accept renames every pending snapshot under root to its .snap form,
// returning the count accepted.
func Accept(root string) (int, error) {
	paths, err := findPending(root)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := os.Rename(p, strings.TrimSuffix(p, ".new")); err != nil {
			return 0, fmt.Errorf("accept %s: %w", p, err)
		}
	}
	return len(paths), nil
}

// Reject deletes every pending snapshot under root, returning the count
// removed.
func Reject(root string) (int, error) {
	paths, err := findPending(root)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return 0, fmt.Errorf("reject %s: %w", p, err)
		}
	}
	return len(paths), nil
}

// ReviewDecision is one interactive choice for a single pending file.
type ReviewDecision int

const (
	ReviewSkip ReviewDecision = iota
	ReviewAccept
	ReviewReject
)

// Review walks every pending snapshot under root, printing its content to
// out and prompting in on a/r/s per file. Upper-case a/r/s apply that
// decision to every remaining file without further prompting. Returns the
// counts accepted and rejected.
func Review(root string, in io.Reader, out io.Writer) (accepted, rejected int, err error) {
	paths, err := findPending(root)
	if err != nil {
		return 0, 0, err
	}

	reader := bufio.NewReader(in)
	var applyAll *ReviewDecision

	for _, p := range paths {
		decision := ReviewSkip
		if applyAll != nil {
			decision = *applyAll
		} else {
			content, rerr := os.ReadFile(p)
			if rerr != nil {
				return accepted, rejected, rerr
			}
			fmt.Fprintf(out, "%s\n%s\n[a]ccept, [r]eject, [s]kip (A/R/S applies to all remaining)? ", p, string(content))
			line, _ := reader.ReadString('\n')
			choice := strings.TrimSpace(line)
			d, all := parseReviewChoice(choice)
			decision = d
			if all {
				applyAll = &d
			}
		}

		switch decision {
		case ReviewAccept:
			if err := os.Rename(p, strings.TrimSuffix(p, ".new")); err != nil {
				return accepted, rejected, err
			}
			accepted++
		case ReviewReject:
			if err := os.Remove(p); err != nil {
				return accepted, rejected, err
			}
			rejected++
		}
	}
	return accepted, rejected, nil
}

func parseReviewChoice(s string) (decision ReviewDecision, applyToAll bool) {
	switch s {
	case "a":
		return ReviewAccept, false
	case "A":
		return ReviewAccept, true
	case "r":
		return ReviewReject, false
	case "R":
		return ReviewReject, true
	case "S":
		return ReviewSkip, true
	default:
		return ReviewSkip, false
	}
}
