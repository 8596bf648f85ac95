package snapshot

import (
	"fmt"
	"os"
	"strings"

	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kparse"
)

// Dir returns the snapshots directory sibling to a test module.
func Dir(testFile kpath.Path) kpath.Path {
	return testFile.Dir().Join("snapshots")
}

// Path returns the full .snap path for key, rooted at testFile's sibling
// snapshots directory.
func Path(testFile kpath.Path, key Key) kpath.Path {
	return Dir(testFile).Join(key.FileName())
}

// renderHeader builds the fixed "---\nsource: ...\n---\n" preamble.
func renderHeader(relPath string, line int, testID string) string {
	return fmt.Sprintf("---\nsource: %s:%d::%s\n---\n", relPath, line, testID)
}

// parseBody strips a snapshot file's header, returning the body with its
// single trailing newline removed. ok is false if content doesn't match
// the header grammar, in which case the whole content is treated as body
// (a defensively-tolerant read of a hand-edited file).
func parseBody(content string) (body string, ok bool) {
	const marker = "---\n"
	if !strings.HasPrefix(content, marker) {
		return strings.TrimSuffix(content, "\n"), false
	}
	rest := content[len(marker):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 || !strings.HasPrefix(rest, "source: ") {
		return strings.TrimSuffix(content, "\n"), false
	}
	rest = rest[nl+1:]
	if !strings.HasPrefix(rest, marker) {
		return strings.TrimSuffix(content, "\n"), false
	}
	body = rest[len(marker):]
	return strings.TrimSuffix(body, "\n"), true
}

// Manager reads, writes, and compares file snapshots.
type Manager struct {
	// Update rewrites a missing or mismatching snapshot instead of
	// failing when true (--snapshot-update).
	Update bool
}

func New(update bool) *Manager {
	return &Manager{Update: update}
}

// AssertFile implements one assert_snapshot call against a file snapshot.
// relPath is the test module's path as it should appear in the header,
// rendered is the value already converted to its display text by the
// Runtime. Returns nil on a passing assertion, or a Diagnostic describing
// a new-pending-snapshot or mismatch failure.
func (m *Manager) AssertFile(testFile kpath.Path, relPath string, testID string, line int, key Key, rendered string) *kparse.Diagnostic {
	snapPath := Path(testFile, key)
	content := renderHeader(relPath, line, testID) + rendered + "\n"

	existing, err := os.ReadFile(snapPath.String())
	switch {
	case os.IsNotExist(err):
		if m.Update {
			if werr := writeFile(snapPath.String(), content); werr != nil {
				return ioErrorDiagnostic(snapPath, werr)
			}
			return nil
		}
		pendingPath := snapPath.String() + ".new"
		if werr := writeFile(pendingPath, content); werr != nil {
			return ioErrorDiagnostic(snapPath, werr)
		}
		return &kparse.Diagnostic{
			Severity: kparse.SeverityError,
			Category: "snapshot-new",
			Message:  fmt.Sprintf("new snapshot written to %s", pendingPath),
		}
	case err != nil:
		return ioErrorDiagnostic(snapPath, err)
	}

	existingBody, _ := parseBody(string(existing))
	if existingBody == rendered {
		return nil
	}
	if m.Update {
		if werr := writeFile(snapPath.String(), content); werr != nil {
			return ioErrorDiagnostic(snapPath, werr)
		}
		return nil
	}
	return &kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "snapshot-mismatch",
		Message:  formatDiff(existingBody, rendered),
	}
}

func ioErrorDiagnostic(path kpath.Path, err error) *kparse.Diagnostic {
	return &kparse.Diagnostic{
		Severity: kparse.SeverityError,
		Category: "snapshot-io",
		Message:  fmt.Sprintf("%s: %s", path.String(), err),
	}
}
