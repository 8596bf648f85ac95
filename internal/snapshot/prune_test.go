package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

// fakeParser returns a fixed function-name list regardless of source
// content, keyed by path, for exercising Prune without a real grammar.
type fakeParser struct {
	functions map[string][]string
}

func (f *fakeParser) Parse(source []byte, path kpath.Path) (*kparse.Module, []kparse.Diagnostic) {
	names := f.functions[path.String()]
	mod := &kparse.Module{Path: path}
	for _, n := range names {
		mod.Functions = append(mod.Functions, &kparse.FunctionDef{Name: n})
	}
	return mod, nil
}

func TestPruneRemovesSnapshotForDeletedTest(t *testing.T) {
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	sourceFile := filepath.Join(dir, "test_x.py")
	if err := os.WriteFile(sourceFile, []byte("def test_live(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(snapDir, "test_x__test_live.snap"), "---\nsource: test_x.py:1::test_live\n---\nv\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(snapDir, "test_x__test_gone.snap"), "---\nsource: test_x.py:1::test_gone\n---\nv\n"); err != nil {
		t.Fatal(err)
	}

	parser := &fakeParser{functions: map[string][]string{sourceFile: {"test_live"}}}
	removed, err := Prune(snapDir, parser, ".py", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 {
		t.Fatalf("got %v, want exactly the stale snapshot", removed)
	}
	if _, err := os.Stat(filepath.Join(snapDir, "test_x__test_live.snap")); err != nil {
		t.Fatalf("live snapshot should survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(snapDir, "test_x__test_gone.snap")); !os.IsNotExist(err) {
		t.Fatalf("stale snapshot should be removed, stat err = %v", err)
	}
}

func TestPruneDryRunListsWithoutRemoving(t *testing.T) {
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	sourceFile := filepath.Join(dir, "test_x.py")
	if err := os.WriteFile(sourceFile, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(snapDir, "test_x__test_gone.snap"), "---\nsource: test_x.py:1::test_gone\n---\nv\n"); err != nil {
		t.Fatal(err)
	}

	parser := &fakeParser{functions: map[string][]string{sourceFile: {}}}
	removed, err := Prune(snapDir, parser, ".py", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 {
		t.Fatalf("got %v, want 1 candidate", removed)
	}
	if _, err := os.Stat(filepath.Join(snapDir, "test_x__test_gone.snap")); err != nil {
		t.Fatalf("dry-run must not remove files: %v", err)
	}
}

func TestPruneKeepsParametrizedSnapshotsByPrefix(t *testing.T) {
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	sourceFile := filepath.Join(dir, "test_x.py")
	if err := os.WriteFile(sourceFile, []byte("def test_add(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(snapDir, "test_x__test_add[x=1].snap"), "---\nsource: test_x.py:1::test_add[x=1]\n---\nv\n"); err != nil {
		t.Fatal(err)
	}

	parser := &fakeParser{functions: map[string][]string{sourceFile: {"test_add"}}}
	removed, err := Prune(snapDir, parser, ".py", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 0 {
		t.Fatalf("got %v, want no removals (parametrized snapshot still live)", removed)
	}
}

func TestDeleteRemovesAllSnapshotFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a__t.snap"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "b__t.snap.new"), "x"); err != nil {
		t.Fatal(err)
	}

	removed, err := Delete(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("got %v, want both files removed", removed)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, got %v", entries)
	}
}
