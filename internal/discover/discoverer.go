package discover

import (
	"fmt"
	"os"
	"strings"

	"github.com/karvarun/karva/internal/kparse"
	"github.com/karvarun/karva/internal/kpath"
	"github.com/karvarun/karva/internal/kruntime"
	"github.com/karvarun/karva/internal/ktags"
)

// Discoverer walks discovery roots into a DiscoveredPackage tree.
type Discoverer struct {
	Parser  kparse.Parser
	Runtime kruntime.Runtime

	// TestPrefix is the configured prefix used to recognize test
	// functions (default "test").
	TestPrefix string
	// RespectIgnoreFiles honors .gitignore/.ignore/.git/info/exclude
	// while walking directory roots.
	RespectIgnoreFiles bool
}

// New returns a Discoverer with the given collaborators and the default
// "test" prefix.
func New(parser kparse.Parser, runtime kruntime.Runtime) *Discoverer {
	return &Discoverer{Parser: parser, Runtime: runtime, TestPrefix: "test", RespectIgnoreFiles: true}
}

// fileAdmission restricts which function names are admitted from a file
// supplied as TestPath{Kind: KindFunction}; nil means admit everything.
type fileAdmission map[string]map[string]bool // file string -> {funcName: true}, nil map = all

// Discover walks every root into a single DiscoveredPackage tree rooted at
// cwd, folding in conftest.py ancestors, and returns accumulated discovery
// diagnostics.
func (d *Discoverer) Discover(roots []TestPath, cwd kpath.Path) (*DiscoveredPackage, []kparse.Diagnostic) {
	var diags []kparse.Diagnostic
	files := make(map[string]bool)
	admission := make(fileAdmission)

	addFile := func(p kpath.Path) {
		files[p.String()] = true
	}

	for _, root := range roots {
		switch root.Kind {
		case KindFile:
			addFile(root.File)
		case KindFunction:
			addFile(root.File)
			if admission[root.File.String()] == nil {
				admission[root.File.String()] = make(map[string]bool)
			}
			admission[root.File.String()][root.FunctionName] = true
		case KindDirectory:
			found, err := expandRoot(root.File, walkOptions{RespectIgnoreFiles: d.RespectIgnoreFiles})
			if err != nil {
				diags = append(diags, kparse.Diagnostic{
					Severity: kparse.SeverityError,
					Category: "invalid-module",
					Message:  fmt.Sprintf("walking %s: %v", root.File, err),
				})
				continue
			}
			for _, f := range found {
				addFile(f)
			}
		}

		dir := root.File
		if root.Kind != KindDirectory {
			dir = root.File.Dir()
		}
		for _, conf := range ancestorConftests(dir, cwd) {
			addFile(conf)
		}
	}

	pkg := NewPackage(cwd)
	for fileStr := range files {
		p, err := kpath.New(fileStr)
		if err != nil {
			continue
		}
		mod, ds := d.discoverFile(p, cwd, admission[fileStr])
		diags = append(diags, ds...)
		if mod != nil {
			pkg.Insert(mod)
		}
	}

	pkg.Shrink()
	return pkg, diags
}

func (d *Discoverer) discoverFile(path, cwd kpath.Path, allowed map[string]bool) (*DiscoveredModule, []kparse.Diagnostic) {
	source, err := os.ReadFile(path.String())
	if err != nil {
		return nil, []kparse.Diagnostic{{
			Severity: kparse.SeverityError,
			Category: "invalid-module",
			Message:  fmt.Sprintf("reading %s: %v", path, err),
			Location: kpath.Location{Path: path},
		}}
	}

	astModule, diags := d.Parser.Parse(source, path)
	for _, dg := range diags {
		if dg.Severity == kparse.SeverityError {
			return nil, diags
		}
	}

	modulePath, ok := kpath.NewModulePath(path, cwd)
	if !ok {
		diags = append(diags, kparse.Diagnostic{
			Severity: kparse.SeverityError,
			Category: "invalid-module",
			Message:  fmt.Sprintf("%s is not a Python file under the project root", path),
			Location: kpath.Location{Path: path},
		})
		return nil, diags
	}

	mod := &DiscoveredModule{
		Path:       path,
		ModulePath: modulePath,
		Source:     source,
		Type:       classifyModuleType(path),
	}

	moduleValue, importErr := d.Runtime.Import(modulePath.String())
	mod.ImportErr = importErr

	for _, fn := range astModule.Functions {
		var callable kruntime.Callable
		if importErr == nil {
			if v, ok := d.Runtime.GetAttr(moduleValue, fn.Name); ok {
				callable = v
			}
		}

		fixture, tags, ds := ktags.Classify(fn, modulePath, path, callable, nil)
		diags = append(diags, ds...)

		if fixture != nil {
			mod.Fixtures = append(mod.Fixtures, fixture)
			continue
		}

		if !strings.HasPrefix(fn.Name, d.TestPrefix) {
			continue
		}
		if allowed != nil && !allowed[fn.Name] {
			continue
		}

		mod.Tests = append(mod.Tests, &ktags.DiscoveredTest{
			Name:        kpath.QualifiedFunctionName{Module: modulePath, Function: fn.Name},
			Callable:    callable,
			Tags:        tags,
			Location:    locationOf(fn, path),
			ParamNames:  paramNamesOf(fn),
			UsesRequest: hasParamName(fn, "request"),
		})
	}

	return mod, diags
}

func classifyModuleType(path kpath.Path) ModuleType {
	if path.Base() == "conftest.py" {
		return ModuleConfiguration
	}
	return ModuleTest
}

func locationOf(fn *kparse.FunctionDef, file kpath.Path) kpath.Location {
	return kpath.Location{
		Path:   file,
		Line:   fn.Range.StartLine,
		Column: fn.Range.StartColumn,
		Range:  fn.Range,
	}
}

func hasParamName(fn *kparse.FunctionDef, name string) bool {
	for _, p := range fn.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func paramNamesOf(fn *kparse.FunctionDef) []string {
	names := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		names[i] = p.Name
	}
	return names
}
