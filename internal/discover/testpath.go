// Package discover walks test roots into a DiscoveredPackage tree: it
// expands directories, honors ignore files, drives a kparse.Parser over
// every candidate module, classifies top-level functions into fixtures
// and tests via internal/ktags, and folds in conftest.py files from every
// ancestor directory up to cwd.
package discover

import (
	"fmt"
	"os"
	"strings"

	"github.com/karvarun/karva/internal/kpath"
)

// TestPathKind discriminates the shapes of a discovery root.
type TestPathKind int

const (
	// KindFile selects every test in one file.
	KindFile TestPathKind = iota
	// KindDirectory recursively selects every test under a directory.
	KindDirectory
	// KindFunction selects exactly one named function in one file.
	KindFunction
)

// TestPath is one user-supplied discovery root (a CLI positional
// argument), after classification into file/directory/function form.
type TestPath struct {
	Kind         TestPathKind
	File         kpath.Path
	FunctionName string // set only when Kind == KindFunction
}

// ParseTestPath classifies one CLI positional argument into a TestPath.
// raw is either a bare file or directory path, or a file path followed by
// "::function_name" to select a single test or fixture out of that file.
// Relative paths resolve against the process working directory, matching
// how every other kpath.New caller in this tree behaves.
func ParseTestPath(raw string) (TestPath, error) {
	filePart, funcName, hasFunc := strings.Cut(raw, "::")
	if filePart == "" {
		return TestPath{}, fmt.Errorf("empty test path")
	}

	p, err := kpath.New(filePart)
	if err != nil {
		return TestPath{}, err
	}

	info, err := os.Stat(p.String())
	if err != nil {
		return TestPath{}, fmt.Errorf("%s: %w", raw, err)
	}

	if hasFunc {
		if info.IsDir() {
			return TestPath{}, fmt.Errorf("%s: ::%s selector is not valid against a directory", raw, funcName)
		}
		if funcName == "" {
			return TestPath{}, fmt.Errorf("%s: empty function name after '::'", raw)
		}
		return TestPath{Kind: KindFunction, File: p, FunctionName: funcName}, nil
	}
	if info.IsDir() {
		return TestPath{Kind: KindDirectory, File: p}, nil
	}
	return TestPath{Kind: KindFile, File: p}, nil
}
