package routing

import (
	"net/url"
	"strings"
)

// NormalizePath turns a user supplied path or absolute URL into a route
// pattern: scheme and host are stripped from absolute URLs, query and
// fragment are dropped, duplicate separators collapse and exactly one
// leading separator is kept.
func NormalizePath(raw string) string {
	path := strings.TrimSpace(raw)

	if u, err := url.Parse(path); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.Path
	}

	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path
}

// ParamPattern returns the parameterized form of a pattern, {path}/{id}
func ParamPattern(pattern string) string {
	return strings.TrimSuffix(NormalizePath(pattern), "/") + "/{id}"
}
