// Package filter decides which paths of a source tree are part of a snapshot.
package filter

import (
	"path/filepath"
	"strings"
)

// Normalize trims every pattern and drops the empty ones.
func Normalize(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Include reports whether candidate, a path under root, should be copied. The root itself is
// always included; anything else is excluded when its path relative to root contains one of
// the patterns as a plain, case-sensitive substring.
func Include(root, candidate string, patterns []string) bool {
	return New(root, patterns).Include(candidate)
}

// Filter caches the normalized patterns for one source root.
type Filter struct {
	root     string
	patterns []string
}

// New creates a filter for root.
func New(root string, patterns []string) *Filter {
	return &Filter{
		root:     root,
		patterns: Normalize(patterns),
	}
}

// Patterns returns the normalized exclude patterns.
func (f *Filter) Patterns() []string {
	return f.patterns
}

// Include reports whether candidate should be copied.
func (f *Filter) Include(candidate string) bool {
	rel, err := filepath.Rel(f.root, candidate)
	if err != nil {
		rel = candidate
	}
	if rel == "" || rel == "." {
		return true
	}

	for _, p := range f.patterns {
		if strings.Contains(rel, p) {
			return false
		}
	}
	return true
}
