// Package diagnostic renders the three diagnostic pools — discovery,
// fixture, test — into a fixed text format: grouped by category, each
// primary span shown with one line of source context above and below and
// a caret underline, followed by any trailing info lines, closed by a
// single final summary line.
package diagnostic

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

// SourceLoader reads a file's full text for snippet rendering.
type SourceLoader func(path kpath.Path) ([]byte, error)

// DefaultLoader reads directly from disk.
func DefaultLoader(path kpath.Path) ([]byte, error) {
	return os.ReadFile(path.String())
}

// Renderer formats diagnostic pools to an io.Writer.
type Renderer struct {
	Load SourceLoader
}

// New returns a Renderer backed by load, or DefaultLoader if load is nil.
func New(load SourceLoader) *Renderer {
	if load == nil {
		load = DefaultLoader
	}
	return &Renderer{Load: load}
}

// RenderPools writes discovery, fixture, and test diagnostics in that
// fixed order, each grouped by category.
func (r *Renderer) RenderPools(w io.Writer, discoveryDiags, fixtureDiags, testDiags []kparse.Diagnostic) {
	r.renderPool(w, discoveryDiags)
	r.renderPool(w, fixtureDiags)
	r.renderPool(w, testDiags)
}

func (r *Renderer) renderPool(w io.Writer, diags []kparse.Diagnostic) {
	for _, group := range groupByCategory(diags) {
		for _, d := range group.diags {
			r.renderOne(w, d)
		}
	}
}

func (r *Renderer) renderOne(w io.Writer, d kparse.Diagnostic) {
	fmt.Fprintf(w, "%s[%s]: %s\n", severityLabel(d.Severity), d.Category, d.Message)
	r.renderSpan(w, d.Location)
	for _, sec := range d.Secondary {
		fmt.Fprintf(w, "  note: also see\n")
		r.renderSpan(w, sec)
	}
	for _, info := range d.Info {
		fmt.Fprintf(w, "  = %s\n", info)
	}
	fmt.Fprintln(w)
}

func (r *Renderer) renderSpan(w io.Writer, loc kpath.Location) {
	fmt.Fprintf(w, "  --> %s\n", loc.String())

	source, err := r.Load(loc.Path)
	if err != nil {
		return
	}
	lines := strings.Split(string(source), "\n")
	idx := loc.Line - 1 // 0-based
	if idx < 0 || idx >= len(lines) {
		return
	}
	lineStart := 0
	for i := 0; i < idx; i++ {
		lineStart += len(lines[i]) + 1 // +1 for the stripped "\n"
	}

	if idx > 0 {
		fmt.Fprintf(w, "  %4d | %s\n", idx, lines[idx-1])
	}
	fmt.Fprintf(w, "  %4d | %s\n", idx+1, lines[idx])
	fmt.Fprintf(w, "       | %s\n", caret(loc, lines[idx], lineStart))
	if idx+1 < len(lines) {
		fmt.Fprintf(w, "  %4d | %s\n", idx+2, lines[idx+1])
	}
}

// caret builds the "     ^^^^" underline for loc's range within line.
// lineStart is line's byte offset within the full source, since
// loc.Range's offsets are file-absolute.
func caret(loc kpath.Location, line string, lineStart int) string {
	col := loc.Column
	if col < 1 {
		col = 1
	}
	width := 1
	relStart := loc.Range.StartByte - lineStart
	relEnd := loc.Range.EndByte - lineStart
	if relEnd > relStart && relStart >= 0 && relEnd <= len(line) {
		width = utf8.RuneCountInString(line[relStart:relEnd])
		if width < 1 {
			width = 1
		}
	}
	return strings.Repeat(" ", col-1) + strings.Repeat("^", width)
}

func severityLabel(s kparse.Severity) string {
	switch s {
	case kparse.SeverityError:
		return "error"
	case kparse.SeverityWarning:
		return "warning"
	case kparse.SeverityInfo:
		return "info"
	default:
		return "error"
	}
}

// RenderSummary writes the final summary line closing a run's output.
func RenderSummary(w io.Writer, passed, failed, skipped int, elapsed time.Duration) {
	status := "ok"
	if failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(w, "test result: %s. %d passed; %d failed; %d skipped; finished in %s\n",
		status, passed, failed, skipped, elapsed.Round(time.Millisecond))
}
