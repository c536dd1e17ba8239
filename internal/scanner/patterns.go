// File: internal/scanner/patterns.go
package scanner

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// PatternError reports a malformed exclusion pattern
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid exclude pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

type matcher struct {
	patterns []string
}

func newMatcher(patterns []string) (*matcher, error) {
	cleaned := make([]string, 0, len(patterns))
	for i, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
			if seg == "**" {
				continue
			}
			if _, err := path.Match(seg, "x"); err != nil {
				return nil, &PatternError{Pattern: p, Index: i, Err: err}
			}
		}
		cleaned = append(cleaned, p)
	}
	return &matcher{patterns: cleaned}, nil
}

// Reports whether rel (slash separated, relative to the scan root) is excluded.
// A path is also excluded when one of its parent directories is
func (m *matcher) match(rel string, dir bool) bool {
	if len(m.patterns) == 0 || rel == "" || rel == "." {
		return false
	}

	segs := strings.Split(rel, "/")
	for i := range segs {
		sub := strings.Join(segs[:i+1], "/")
		isDir := dir || i < len(segs)-1
		for _, p := range m.patterns {
			if matchOne(p, sub, isDir) {
				return true
			}
		}
	}
	return false
}

func matchOne(pattern, rel string, isDir bool) bool {
	if strings.HasSuffix(pattern, "/") {
		if !isDir {
			return false
		}
		pattern = strings.TrimSuffix(pattern, "/")
	}

	if strings.Contains(pattern, "**") {
		return matchSegments(strings.Split(strings.Trim(pattern, "/"), "/"), strings.Split(rel, "/"))
	}

	// Patterns without a slash match the base name at any depth
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(rel))
		return ok
	}

	ok, _ := path.Match(strings.TrimPrefix(pattern, "/"), rel)
	return ok
}

// "**" matches zero or more whole segments
func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], segs[0]); !ok {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}
