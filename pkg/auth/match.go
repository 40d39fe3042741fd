package auth

import "strings"

// MatchPath reports whether path matches an Ant-style pattern.
//
// Supported patterns, checked in this order (first applicable rule wins):
//
//	/**        every path
//	/api/**    every path starting with "/api"
//	*.html     every path ending with ".html"
//	/api/*     "/api/" followed by at most one segment
//	/exact     exact match
func MatchPath(path, pattern string) bool {
	if pattern == "/**" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return strings.HasPrefix(path, prefix)
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(path, suffix)
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			return false
		}
		// One separator plus one segment; "/api/" counts as a single (empty) segment.
		return !strings.Contains(strings.TrimPrefix(rest, "/"), "/")
	}
	return path == pattern
}

// MatchAny reports whether path matches at least one of patterns.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPath(path, p) {
			return true
		}
	}
	return false
}

// NeedAuth reports whether path matches an include pattern and no exclude
// pattern. Exclusion always wins.
func NeedAuth(path string, include, exclude []string) bool {
	return MatchAny(path, include) && !MatchAny(path, exclude)
}
