package scanner

import (
	"fmt"
	"path"
	"strings"
)

// PatternMatcher decides whether a relative path is selected by include and
// exclude glob patterns.
type PatternMatcher struct{}

// NewPatternMatcher creates a new pattern matcher.
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// ShouldIncludeFile reports whether relPath passes the patterns. Excludes take
// precedence; with no include patterns every path not excluded is included.
func (pm *PatternMatcher) ShouldIncludeFile(
	relPath string,
	includePatterns []string,
	excludePatterns []string,
) bool {
	relPath = strings.ReplaceAll(relPath, "\\", "/")

	for _, pattern := range excludePatterns {
		if pm.matchesPattern(relPath, pattern) {
			return false
		}
	}

	if len(includePatterns) == 0 {
		return true
	}
	for _, pattern := range includePatterns {
		if pm.matchesPattern(relPath, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern supports "dir/" prefixes, "**" wildcards and path.Match globs.
// A pattern without a slash also matches the base name, so "*.log" excludes
// logs at any depth.
func (pm *PatternMatcher) matchesPattern(p, pattern string) bool {
	if strings.HasSuffix(pattern, "/") {
		dir := strings.TrimSuffix(pattern, "/")
		return strings.HasPrefix(p+"/", dir+"/")
	}

	if strings.Contains(pattern, "**") {
		return pm.matchesGlobPattern(p, pattern)
	}

	if match, err := path.Match(pattern, p); err == nil && match {
		return true
	}
	if !strings.Contains(pattern, "/") {
		match, err := path.Match(pattern, path.Base(p))
		return err == nil && match
	}
	return false
}

// matchesGlobPattern handles a single "**", which matches any number of path
// segments. Each side of it is matched as a glob.
func (pm *PatternMatcher) matchesGlobPattern(p, pattern string) bool {
	parts := strings.Split(pattern, "**")
	if len(parts) != 2 {
		return false
	}
	prefix, suffix := parts[0], strings.TrimPrefix(parts[1], "/")

	if prefix != "" {
		prefixDir := strings.TrimSuffix(prefix, "/")
		segments := strings.Count(prefixDir, "/") + 1
		head := strings.SplitN(p, "/", segments+1)
		if len(head) <= segments {
			return false
		}
		match, err := path.Match(prefixDir, strings.Join(head[:segments], "/"))
		if err != nil || !match {
			return false
		}
		p = head[segments]
	}

	if suffix == "" {
		return true
	}

	// try the suffix against every trailing run of segments
	for {
		if match, err := path.Match(suffix, p); err == nil && match {
			return true
		}
		i := strings.Index(p, "/")
		if i < 0 {
			return false
		}
		p = p[i+1:]
	}
}

// ValidatePatterns returns an error for each syntactically invalid pattern.
func (pm *PatternMatcher) ValidatePatterns(patterns []string) []error {
	var errs []error

	for i, pattern := range patterns {
		if strings.Count(pattern, "**") > 1 {
			errs = append(errs, &PatternError{
				Pattern: pattern,
				Index:   i,
				Err:     fmt.Errorf("at most one ** is supported"),
			})
			continue
		}

		check := strings.ReplaceAll(strings.TrimSuffix(pattern, "/"), "**", "*")
		if _, err := path.Match(check, "probe"); err != nil {
			errs = append(errs, &PatternError{
				Pattern: pattern,
				Index:   i,
				Err:     err,
			})
		}
	}

	return errs
}

// PatternError represents an invalid pattern.
type PatternError struct {
	Pattern string
	Index   int
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern at index %d '%s': %v", e.Index, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
