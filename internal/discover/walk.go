package discover

import (
	"os"
	"path/filepath"
	"sort"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/karvarun/karva/internal/kpath"
)

const (
	ignoreFileGit     = ".gitignore"
	ignoreFileGeneric = ".ignore"
)

// ignoreSet stacks the compiled ignore patterns from every directory
// between the walk root and the current directory, since gitignore
// patterns are scoped to the directory tree below where they are found.
type ignoreSet struct {
	matchers []*gitignore.GitIgnore
}

func (s ignoreSet) push(dir string, respect bool) ignoreSet {
	if !respect {
		return s
	}
	next := ignoreSet{matchers: append([]*gitignore.GitIgnore{}, s.matchers...)}
	for _, name := range [...]string{ignoreFileGit, ignoreFileGeneric} {
		p := filepath.Join(dir, name)
		if m, err := gitignore.CompileIgnoreFile(p); err == nil {
			next.matchers = append(next.matchers, m)
		}
	}
	if m, err := gitignore.CompileIgnoreFile(filepath.Join(dir, ".git", "info", "exclude")); err == nil {
		next.matchers = append(next.matchers, m)
	}
	return next
}

func (s ignoreSet) ignores(rel string) bool {
	for _, m := range s.matchers {
		if m.MatchesPath(rel) {
			return true
		}
	}
	return false
}

// walkOptions configures expandRoot.
type walkOptions struct {
	RespectIgnoreFiles bool
}

// expandRoot walks a directory tree collecting every .py file, honoring
// ignore files when configured. Walking itself is sequential (the
// standard library's WalkDir has no parallel form); the parsing stage
// that follows fans out over the resulting file list instead.
func expandRoot(root kpath.Path, opts walkOptions) ([]kpath.Path, error) {
	var files []kpath.Path
	set := ignoreSet{}.push(root.Dir().String(), opts.RespectIgnoreFiles)

	err := filepath.WalkDir(root.String(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			set = set.push(path, opts.RespectIgnoreFiles)
			if rel, relErr := filepath.Rel(root.String(), path); relErr == nil && rel != "." && set.ignores(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}
		if rel, relErr := filepath.Rel(root.String(), path); relErr == nil && set.ignores(rel) {
			return nil
		}
		p, perr := kpath.New(path)
		if perr != nil {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].String() < files[j].String() })
	return files, nil
}

// ancestorConftests collects the conftest.py file in every ancestor
// directory of dir, up to and including cwd, so configuration modules
// outside the supplied roots still contribute fixtures.
func ancestorConftests(dir, cwd kpath.Path) []kpath.Path {
	var out []kpath.Path
	cur := dir
	for {
		candidate := cur.Join("conftest.py")
		if fileExists(candidate.String()) {
			out = append(out, candidate)
		}
		if cur.Equal(cwd) {
			break
		}
		parent := cur.Dir()
		if parent.Equal(cur) {
			break
		}
		if !cur.HasPrefix(cwd) && !cwd.HasPrefix(cur) {
			break
		}
		cur = parent
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
