package aspcheck

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// NormalizePath converts a path to use forward slashes consistently
// regardless of the operating system and cleans the path.
// It removes redundant separators, dot-segments, and normalizes separators to forward slashes.
// Empty paths remain empty.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}

	cleaned := filepath.Clean(path)
	return strings.ReplaceAll(cleaned, "\\", "/")
}

// JoinPaths joins path elements and normalizes the result.
func JoinPaths(elem ...string) string {
	return NormalizePath(filepath.Join(elem...))
}

// RelPath returns target relative to base with forward slashes. When
// target is not below base the normalized target is returned.
func RelPath(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return NormalizePath(target)
	}
	return NormalizePath(rel)
}

// IsSubPath checks if childPath is childPath itself or below parentPath.
// Both paths are normalized before comparison.
func IsSubPath(parentPath, childPath string) bool {
	normalizedParent := NormalizePath(parentPath)
	normalizedChild := NormalizePath(childPath)

	if normalizedParent == "" || normalizedParent == "." {
		return true
	}
	if normalizedParent == normalizedChild {
		return true
	}
	if !strings.HasSuffix(normalizedParent, "/") {
		normalizedParent += "/"
	}
	return strings.HasPrefix(normalizedChild, normalizedParent)
}

// Matcher tests slash-separated relative paths against exclusion globs.
// A single "*" stays within one path segment and "**" spans any number of
// segments, including none.
type Matcher struct {
	globs []glob.Glob
}

// NewMatcher compiles patterns. An invalid pattern is a config error.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		variants := []string{p}
		// "a/**/b" should also match "a/b", and "**/x" should match "x".
		if strings.Contains(p, "**/") {
			variants = append(variants, strings.ReplaceAll(p, "**/", ""))
		}
		for _, v := range variants {
			g, err := glob.Compile(v, '/')
			if err != nil {
				return nil, NewConfigError(fmt.Sprintf("invalid exclude pattern %q", p), err)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

// Match reports whether the file at rel, or its base name, is excluded.
func (m *Matcher) Match(rel string) bool {
	rel = NormalizePath(rel)
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	for _, g := range m.globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// MatchDir reports whether everything below the directory at rel is
// excluded, so a walk can skip it. "vendor/**" excludes vendor at the root
// and any directory named vendor deeper in the tree.
func (m *Matcher) MatchDir(rel string) bool {
	rel = NormalizePath(rel)
	if rel == "." || rel == "" {
		return false
	}
	base := rel[strings.LastIndexByte(rel, '/')+1:]
	for _, g := range m.globs {
		if g.Match(rel) || g.Match(rel+"/") || g.Match(base+"/") {
			return true
		}
	}
	return false
}
