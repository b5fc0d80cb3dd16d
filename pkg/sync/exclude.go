package sync

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sdejongh/assurance/pkg/models"
)

// Filter decides which paths the tree comparator skips.
// A path is skipped when:
//   - its lower-cased name is an ignored file name (.DS_Store, Thumbs.db)
//   - its lower-cased extension is ignored (tmp, log)
//   - it matches an ignore pattern:
//     name patterns (*.bak) match the base name,
//     directory patterns (.git/, node_modules/) match any path component,
//     path patterns (build/*, **/cache/**) match the tail of the slash path,
//     or the whole path below the root when anchored with a leading slash
//   - it is one of the mapping's excluded paths
//
// Patterns only see the part of a path below the mapping roots, so a root
// such as /home/build/src is not skipped by the pattern "build/".
type Filter struct {
	names      map[string]struct{}
	extensions map[string]struct{}
	patterns   []string
	exclusions map[string]struct{}
	roots      []string
}

// NewFilter builds a filter from the scan options, a mapping's exclusions
// and the mapping roots
func NewFilter(opts models.ScanOptions, exclusions []string, roots ...string) *Filter {
	f := &Filter{
		names:      make(map[string]struct{}, len(opts.IgnoredFileNames)),
		extensions: make(map[string]struct{}, len(opts.IgnoredExtensions)),
		exclusions: make(map[string]struct{}, len(exclusions)),
	}
	for _, root := range roots {
		if root != "" {
			f.roots = append(f.roots, filepath.Clean(root))
		}
	}
	for _, n := range opts.IgnoredFileNames {
		f.names[strings.ToLower(n)] = struct{}{}
	}
	for _, e := range opts.IgnoredExtensions {
		f.extensions[strings.ToLower(e)] = struct{}{}
	}
	for _, p := range opts.IgnorePatterns {
		if p = filepath.ToSlash(strings.TrimSpace(p)); p != "" {
			f.patterns = append(f.patterns, p)
		}
	}
	for _, ex := range exclusions {
		if ex != "" {
			f.exclusions[filepath.Clean(ex)] = struct{}{}
		}
	}
	return f
}

// SkipPair reports whether a pair is skipped. Either side matching is enough,
// so an ignored name on one side never shows up as a missing counterpart.
func (f *Filter) SkipPair(source, target string) bool {
	return f.Skip(source) || f.Skip(target)
}

// Skip reports whether a single path is filtered out. An empty path never is.
func (f *Filter) Skip(path string) bool {
	if path == "" {
		return false
	}
	path = filepath.Clean(path)
	if _, ok := f.exclusions[path]; ok {
		return true
	}

	name := filepath.Base(path)
	if _, ok := f.names[strings.ToLower(name)]; ok {
		return true
	}
	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
		if _, ok := f.extensions[strings.ToLower(ext)]; ok {
			return true
		}
	}

	rel := f.relative(path)
	if rel == "." {
		return false
	}
	return f.matchesPattern(filepath.ToSlash(rel), name)
}

// relative returns path relative to the root containing it, or path itself
func (f *Filter) relative(path string) string {
	for _, root := range f.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return rel
	}
	return path
}

func (f *Filter) matchesPattern(slashPath, name string) bool {
	for _, pattern := range f.patterns {
		// Directory patterns match any component of the path
		if strings.HasSuffix(pattern, "/") {
			dir := strings.TrimSuffix(pattern, "/")
			for _, part := range strings.Split(slashPath, "/") {
				if ok, _ := doublestar.Match(dir, part); ok {
					return true
				}
			}
			continue
		}

		// Name patterns apply to the base name only
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, name); ok {
				return true
			}
			continue
		}

		// Relative path patterns may match at any depth
		if strings.HasPrefix(pattern, "/") {
			pattern = strings.TrimPrefix(pattern, "/")
		} else if !strings.HasPrefix(pattern, "**/") {
			pattern = "**/" + pattern
		}
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(slashPath, "/")); ok {
			return true
		}
	}
	return false
}
