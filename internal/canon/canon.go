// Package canon normalizes URLs into dedup keys and filters repeated records.
package canon

import (
	"net/url"
	"strings"
)

// Canonicalize reduces rawURL to scheme://host/path with the scheme and host
// lowercased and any trailing slash, query string and fragment removed.
// Strings that do not parse as absolute URLs are returned unchanged.
func Canonicalize(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return rawURL
	}
	u, err := url.Parse(trimmed)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		return rawURL
	}
	clean := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
	return strings.TrimSuffix(clean, "/")
}

// Dedupe keeps the first record for every key in a single left-to-right pass.
// Records whose key is empty are dropped. Survivors keep their input order.
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// URLKey returns the canonical form of u, or "" for an empty URL.
func URLKey(u string) string {
	if strings.TrimSpace(u) == "" {
		return ""
	}
	return Canonicalize(u)
}
