package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
)

// snapshotModuleLeaf recovers the "<module_leaf>" prefix a snapshot
// filename was built from: everything before the first "__".
func snapshotModuleLeaf(base string) (leaf string, rest string, ok bool) {
	name := strings.TrimSuffix(strings.TrimSuffix(base, ".new"), ".snap")
	i := strings.Index(name, "__")
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+2:], true
}

// liveFunctionNames parses sourceFile's module and returns its top-level
// function names.
func liveFunctionNames(parser kparse.Parser, sourceFile kpath.Path) (map[string]bool, error) {
	src, err := os.ReadFile(sourceFile.String())
	if err != nil {
		return nil, err
	}
	mod, diags := parser.Parse(src, sourceFile)
	for _, d := range diags {
		if d.Severity == kparse.SeverityError {
			return nil, fmt.Errorf("%s: %s", sourceFile.String(), d.Message)
		}
	}
	names := make(map[string]bool, len(mod.Functions))
	for _, fn := range mod.Functions {
		names[fn.Name] = true
	}
	return names, nil
}

// isStale reports whether a snapshot's "rest" (everything after
// "<module_leaf>__") names a test function no longer present in live, by
// prefix match — a parametrized snapshot's rest starts with the function
// name followed by "[", "--", or "-N".
func isStale(rest string, live map[string]bool) bool {
	for fn := range live {
		if rest == fn || strings.HasPrefix(rest, fn+"[") || strings.HasPrefix(rest, fn+"--") || strings.HasPrefix(rest, fn+"-") {
			return false
		}
	}
	return true
}

// Prune removes every .snap (and .snap.new) file under root whose module
// leaf resolves to a sibling "<leaf>.py" (searched next to the snapshots/
// directory it lives under) in which the encoded test function is no
// longer defined. dryRun lists the candidates without removing them.
// Returns the paths it removed (or would remove, under dryRun).
func Prune(root string, parser kparse.Parser, sourceExt string, dryRun bool) ([]string, error) {
	var snaps []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".snap") || strings.HasSuffix(path, ".snap.new") {
			snaps = append(snaps, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(snaps)

	liveCache := map[string]map[string]bool{}
	var removed []string
	for _, snapPath := range snaps {
		leaf, rest, ok := snapshotModuleLeaf(filepath.Base(snapPath))
		if !ok {
			continue
		}
		snapDir := filepath.Dir(snapPath)     // .../snapshots
		moduleDir := filepath.Dir(snapDir)    // test module's own directory
		sourceFile := filepath.Join(moduleDir, leaf+sourceExt)

		live, cached := liveCache[sourceFile]
		if !cached {
			var lerr error
			live, lerr = liveFunctionNames(parser, kpath.MustNew(sourceFile))
			if lerr != nil {
				// Source module gone entirely: every snapshot under it is stale.
				live = map[string]bool{}
			}
			liveCache[sourceFile] = live
		}

		if isStale(rest, live) {
			removed = append(removed, snapPath)
			if !dryRun {
				if err := os.Remove(snapPath); err != nil {
					return removed, err
				}
			}
		}
	}
	return removed, nil
}

// Delete removes every .snap and .snap.new file under root. dryRun lists
// the candidates without removing them. Returns the removed paths.
func Delete(root string, dryRun bool) ([]string, error) {
	var snaps []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(path, ".snap") || strings.HasSuffix(path, ".snap.new")) {
			snaps = append(snaps, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(snaps)
	if dryRun {
		return snaps, nil
	}
	for _, p := range snaps {
		if err := os.Remove(p); err != nil {
			return snaps, err
		}
	}
	return snaps, nil
}
