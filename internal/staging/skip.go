package staging

import (
	"path/filepath"
	"strings"
)

// DefaultSkipPatterns are staged names never collected: hidden files and
// partial downloads.
var DefaultSkipPatterns = []string{".*", "*.part"}

// SkipMatcher matches staged file names against shell patterns.
// Blank patterns and patterns starting with '#' are ignored.
type SkipMatcher struct {
	patterns []string
}

// NewSkipMatcher creates a SkipMatcher from raw pattern strings.
func NewSkipMatcher(raw []string) *SkipMatcher {
	var patterns []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		patterns = append(patterns, p)
	}
	return &SkipMatcher{patterns: patterns}
}

// Match reports whether the base name of name matches any pattern.
// Malformed patterns never match.
func (m *SkipMatcher) Match(name string) bool {
	base := filepath.Base(name)
	for _, p := range m.patterns {
		if ok, err := filepath.Match(p, base); err == nil && ok {
			return true
		}
	}
	return false
}
