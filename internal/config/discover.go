package config

import "path/filepath"

// Discover walks up from startDir looking for karva.toml or a
// pyproject.toml with a [tool.karva] table, stopping at the first
// directory where either is found. Unlike the teacher's sky.star/sky.toml
// walk, it never stops early at a VCS root — projects without a .git
// directory (a fresh checkout, a tarball) still resolve their config.
func Discover(startDir string) (Result, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return Result{}, err
	}
	for {
		if fileExists(joinPath(dir, FileKarva)) || fileHasKarvaTable(joinPath(dir, FilePyproject)) {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Result{Config: Default()}, nil
		}
		dir = parent
	}
}
