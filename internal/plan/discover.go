package plan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/symphony/internal/errors"
)

// Candidate is a Markdown file containing a phases block.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// Finder locates plan files under a root directory.
type Finder struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFinder compiles the include and exclude patterns. Patterns are matched
// against slash-separated paths relative to the search root; an empty
// include list admits every Markdown file.
func NewFinder(include, exclude []string) (*Finder, error) {
	f := &Finder{}
	for _, p := range include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		f.include = append(f.include, g)
	}
	for _, p := range exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

func (f *Finder) admits(rel string) bool {
	for _, g := range f.exclude {
		if g.Match(rel) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Candidates walks root and returns every admitted .md file that contains
// a phases block, newest first. Hidden directories and node_modules are
// skipped; unreadable entries are ignored.
func (f *Finder) Candidates(root string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrPlanNotFound, "directory %q does not exist", root)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%q is not a directory", root)
	}

	var out []Candidate
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || !f.admits(filepath.ToSlash(rel)) {
			return nil
		}

		src, err := os.ReadFile(path)
		if err != nil || !containsBlock(src) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, Candidate{Path: path, ModTime: fi.ModTime()})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to search %s: %w", root, walkErr)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Latest returns the absolute path of the most recently modified plan
// under root.
func (f *Finder) Latest(root string) (string, error) {
	candidates, err := f.Candidates(root)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", errors.Wrapf(errors.ErrPlanNotFound, "no plan with a %s block in %q", BlockLanguage, root)
	}
	abs, err := filepath.Abs(candidates[0].Path)
	if err != nil {
		return candidates[0].Path, nil
	}
	return abs, nil
}

// containsBlock is a cheap pre-check; full extraction happens at parse time.
func containsBlock(src []byte) bool {
	return strings.Contains(string(src), "```"+BlockLanguage)
}
