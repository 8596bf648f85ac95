// Package config loads karva's project configuration. The canonical
// source is karva.toml at the project root; when that file is absent,
// the [tool.karva] table of pyproject.toml is used instead. When both
// exist, karva.toml wins and a warning is surfaced to the caller.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Filenames checked, in priority order, within a single directory.
const (
	FileKarva     = "karva.toml"
	FilePyproject = "pyproject.toml"
)

// Src controls discovery's filesystem walk.
type Src struct {
	RespectIgnoreFiles bool     `toml:"respect-ignore-files"`
	Include            []string `toml:"include"`
}

// Terminal controls rendering and child-process output visibility.
type Terminal struct {
	OutputFormat     string `toml:"output-format"`
	ShowPythonOutput bool   `toml:"show-python-output"`
}

// Test controls discovery and execution policy.
type Test struct {
	TestFunctionPrefix string `toml:"test-function-prefix"`
	FailFast           bool   `toml:"fail-fast"`
	TryImportFixtures  bool   `toml:"try-import-fixtures"`
}

// Config is the full set of recognized configuration keys.
type Config struct {
	Src      Src      `toml:"src"`
	Terminal Terminal `toml:"terminal"`
	Test     Test     `toml:"test"`
}

// pyprojectDoc unwraps pyproject.toml's [tool.karva] table; every other
// key in pyproject.toml (build-system, other tools' tables) is ignored.
type pyprojectDoc struct {
	Tool struct {
		Karva Config `toml:"karva"`
	} `toml:"tool"`
}

// Default returns the configuration karva uses when no config file is
// present anywhere on the search path.
func Default() Config {
	return Config{
		Src:      Src{RespectIgnoreFiles: true},
		Terminal: Terminal{OutputFormat: "full"},
		Test:     Test{TestFunctionPrefix: "test"},
	}
}

// Result is a loaded configuration plus the diagnostics produced while
// locating and parsing it (currently just the both-files-present
// warning; parse failures are returned as an error instead, since a
// malformed config file aborts the run before discovery starts).
type Result struct {
	Config Config
	// Source is the path the configuration was actually loaded from,
	// or "" if no file was found and Default was used.
	Source string
	// Warning is a non-fatal note, e.g. "both karva.toml and
	// pyproject.toml define karva configuration; karva.toml wins". Empty when
	// there is nothing to report.
	Warning string
}

// Load searches dir for karva.toml, then pyproject.toml, merging
// neither — karva.toml wins outright when both exist. Returns
// Default() with no error when neither file exists.
func Load(dir string) (Result, error) {
	karvaPath := joinPath(dir, FileKarva)
	pyprojectPath := joinPath(dir, FilePyproject)

	karvaExists := fileExists(karvaPath)
	pyprojectHasTable := fileHasKarvaTable(pyprojectPath)

	switch {
	case karvaExists:
		cfg, err := loadKarvaToml(karvaPath)
		if err != nil {
			return Result{}, fmt.Errorf("config-error: %w", err)
		}
		res := Result{Config: cfg, Source: karvaPath}
		if pyprojectHasTable {
			res.Warning = fmt.Sprintf("both %s and %s define karva configuration; %s wins", FileKarva, FilePyproject, FileKarva)
		}
		return res, nil
	case pyprojectHasTable:
		cfg, err := loadPyprojectTable(pyprojectPath)
		if err != nil {
			return Result{}, fmt.Errorf("config-error: %w", err)
		}
		return Result{Config: cfg, Source: pyprojectPath}, nil
	default:
		return Result{Config: Default()}, nil
	}
}

func loadKarvaToml(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func loadPyprojectTable(path string) (Config, error) {
	var doc pyprojectDoc
	doc.Tool.Karva = Default()
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Tool.Karva, nil
}

// fileHasKarvaTable reports whether path exists and decodes to a
// non-empty [tool.karva] table. A pyproject.toml with no such table
// (the common case for a project with no karva section) is treated as
// "config not present" rather than an error.
func fileHasKarvaTable(path string) bool {
	if !fileExists(path) {
		return false
	}
	var probe struct {
		Tool struct {
			Karva map[string]any `toml:"karva"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(path, &probe); err != nil {
		return false
	}
	return probe.Tool.Karva != nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}
