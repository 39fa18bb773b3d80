package watcher

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

// Filter decides whether a changed path is delivered. rel is the
// slash-separated path relative to the watch root.
type Filter interface {
	Match(rel string) bool
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(rel string) bool

// Match calls f.
func (f FilterFunc) Match(rel string) bool { return f(rel) }

// AcceptAll matches every path.
var AcceptAll Filter = FilterFunc(func(string) bool { return true })

var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	out := make([]string, len(defaultIgnores))
	copy(out, defaultIgnores)
	return out
}

// SuffixFilter matches paths ending in any of suffixes. Matching is case
// sensitive. With no suffixes every path matches.
func SuffixFilter(suffixes ...string) Filter {
	if len(suffixes) == 0 {
		return AcceptAll
	}
	s := append([]string(nil), suffixes...)
	return FilterFunc(func(rel string) bool {
		for _, suffix := range s {
			if strings.HasSuffix(rel, suffix) {
				return true
			}
		}
		return false
	})
}

// GlobFilter matches paths against doublestar patterns such as "docs/**/*.md".
// With no patterns every path matches.
func GlobFilter(patterns ...string) (Filter, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return AcceptAll, nil
	}
	p := append([]string(nil), patterns...)
	return FilterFunc(func(rel string) bool {
		return matchAny(p, rel)
	}), nil
}

// IgnoreFilter matches paths that do NOT match any of patterns.
func IgnoreFilter(patterns ...string) (Filter, error) {
	if err := ValidatePatterns(patterns); err != nil {
		return nil, err
	}
	p := append([]string(nil), patterns...)
	return FilterFunc(func(rel string) bool {
		return !matchAny(p, rel) && !matchAny(p, rel+"/")
	}), nil
}

// AllOf matches when every filter matches. Nil filters are skipped.
func AllOf(filters ...Filter) Filter {
	var fs []Filter
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return FilterFunc(func(rel string) bool {
		for _, f := range fs {
			if !f.Match(rel) {
				return false
			}
		}
		return true
	})
}

// ValidatePatterns checks that every pattern is a valid doublestar glob.
func ValidatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return errs.New(errs.ErrCodeInvalidPattern, fmt.Sprintf("invalid glob pattern %q", pat), nil).
				WithDetail("pattern", pat)
		}
	}
	return nil
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}
