package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karvarun/karva/internal/kpath"
)

func TestAssertFileWritesPendingOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	testFile := kpath.MustNew(filepath.Join(dir, "test_x.py"))
	key := Key{ModuleLeaf: "test_x", TestName: "test_hello", Unnamed: 1}

	m := New(false)
	diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "hello world")
	if diag == nil || diag.Category != "snapshot-new" {
		t.Fatalf("got %+v, want a snapshot-new diagnostic", diag)
	}

	pending := Path(testFile, key).String() + ".new"
	content, err := os.ReadFile(pending)
	if err != nil {
		t.Fatalf("pending file not written: %v", err)
	}
	want := "---\nsource: test_x.py:5::test_hello\n---\nhello world\n"
	if string(content) != want {
		t.Fatalf("got %q, want %q", content, want)
	}
}

func TestAssertFileMatchesExistingSnapshot(t *testing.T) {
	dir := t.TempDir()
	testFile := kpath.MustNew(filepath.Join(dir, "test_x.py"))
	key := Key{ModuleLeaf: "test_x", TestName: "test_hello", Unnamed: 1}

	if err := writeFile(Path(testFile, key).String(), "---\nsource: test_x.py:5::test_hello\n---\nhello world\n"); err != nil {
		t.Fatal(err)
	}

	m := New(false)
	if diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "hello world"); diag != nil {
		t.Fatalf("got %+v, want nil (match)", diag)
	}
}

func TestAssertFileReportsMismatchWithoutUpdate(t *testing.T) {
	dir := t.TempDir()
	testFile := kpath.MustNew(filepath.Join(dir, "test_x.py"))
	key := Key{ModuleLeaf: "test_x", TestName: "test_hello", Unnamed: 1}

	if err := writeFile(Path(testFile, key).String(), "---\nsource: test_x.py:5::test_hello\n---\nhello world\n"); err != nil {
		t.Fatal(err)
	}

	m := New(false)
	diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "goodbye world")
	if diag == nil || diag.Category != "snapshot-mismatch" {
		t.Fatalf("got %+v, want a snapshot-mismatch diagnostic", diag)
	}
	if !strings.Contains(diag.Message, "goodbye world") {
		t.Fatalf("diff %q missing new value", diag.Message)
	}
}

func TestAssertFileOverwritesOnUpdate(t *testing.T) {
	dir := t.TempDir()
	testFile := kpath.MustNew(filepath.Join(dir, "test_x.py"))
	key := Key{ModuleLeaf: "test_x", TestName: "test_hello", Unnamed: 1}

	if err := writeFile(Path(testFile, key).String(), "---\nsource: test_x.py:5::test_hello\n---\nhello world\n"); err != nil {
		t.Fatal(err)
	}

	m := New(true)
	if diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "goodbye world"); diag != nil {
		t.Fatalf("got %+v, want nil under --snapshot-update", diag)
	}

	content, err := os.ReadFile(Path(testFile, key).String())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "goodbye world") {
		t.Fatalf("snapshot not updated: %q", content)
	}
}

func TestAssertFileRunTwiceAfterAcceptIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	testFile := kpath.MustNew(filepath.Join(dir, "test_x.py"))
	key := Key{ModuleLeaf: "test_x", TestName: "test_hello", Unnamed: 1}

	m := New(false)
	if diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "hello world"); diag == nil {
		t.Fatalf("expected a pending-snapshot diagnostic on first run")
	}
	if _, err := Accept(dir); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(Path(testFile, key).String())
	if err != nil {
		t.Fatal(err)
	}
	if diag := m.AssertFile(testFile, "test_x.py", "test_hello", 5, key, "hello world"); diag != nil {
		t.Fatalf("got %+v, want nil on second run", diag)
	}
	after, err := os.ReadFile(Path(testFile, key).String())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("snapshot file changed on matching rerun")
	}
}
