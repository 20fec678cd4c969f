package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/JakeFAU/turboduck/internal/hash/sha256"
)

var digester = sha256.New()

// Key renders route and params as "route|k=v|k=v" with keys sorted and
// query-escaped. Empty values are skipped so an absent optional parameter and
// one set to "" yield the same key.
func Key(route string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(route)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Signature returns a fixed-length digest of Key(route, params).
func Signature(route string, params map[string]string) string {
	return route + ":" + digester.HashString(Key(route, params))
}
