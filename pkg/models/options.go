package models

import "strings"

// ScanOptions are the scan-wide settings read by the tree comparator.
// Build them with NewScanOptions so the ignore lists are normalised.
type ScanOptions struct {
	// IgnoredFileNames are lower-cased file names skipped on either side
	IgnoredFileNames []string
	// IgnoredExtensions are lower-cased extensions without the leading dot
	IgnoredExtensions []string
	// IgnorePatterns are doublestar globs matched against names and slash paths
	IgnorePatterns []string
}

// NewScanOptions normalises the ignore lists.
// Extensions may be given as "*.ext", ".ext" or "ext".
func NewScanOptions(names, extensions, patterns []string) ScanOptions {
	opts := ScanOptions{}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			opts.IgnoredFileNames = append(opts.IgnoredFileNames, n)
		}
	}
	for _, e := range extensions {
		e = strings.ReplaceAll(e, "*.", "")
		e = strings.ReplaceAll(e, "*", "")
		e = strings.ReplaceAll(e, ".", "")
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			opts.IgnoredExtensions = append(opts.IgnoredExtensions, e)
		}
	}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			opts.IgnorePatterns = append(opts.IgnorePatterns, p)
		}
	}
	return opts
}

// SplitList splits a comma separated setting into trimmed entries
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
