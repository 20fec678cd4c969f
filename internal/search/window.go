package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PageWindow is an offset/limit slice over the deduplicated candidates.
type PageWindow struct {
	Page    int
	PerPage int
}

// NewPageWindow validates page bounds. A zero maxPage leaves the page unbounded.
func NewPageWindow(page, perPage, maxPerPage, maxPage int) (PageWindow, error) {
	if perPage < 1 || (maxPerPage > 0 && perPage > maxPerPage) {
		return PageWindow{}, InvalidInput("limit", fmt.Sprintf("must be between 1 and %d", maxPerPage))
	}
	if page < 1 {
		return PageWindow{}, InvalidInput("page", "must be >= 1")
	}
	if maxPage > 0 && page > maxPage {
		return PageWindow{}, InvalidInput("page", fmt.Sprintf("must be <= %d", maxPage))
	}
	return PageWindow{Page: page, PerPage: perPage}, nil
}

// Offset is the index of the first record on the page.
func (w PageWindow) Offset() int {
	return (w.Page - 1) * w.PerPage
}

// FetchSize is how many raw results the backend must return to fill the page.
func (w PageWindow) FetchSize() int {
	return w.Offset() + w.PerPage
}

// Paginate slices items at [offset, offset+per_page). A page past the end is empty.
func Paginate[T any](items []T, w PageWindow) []T {
	start := w.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+w.PerPage, len(items))
	return items[start:end]
}

var freshnessPattern = regexp.MustCompile(`^(\d+)([dwmy])$`)

var freshnessDays = map[string]int{"d": 1, "w": 7, "m": 30, "y": 365}

// MaxFreshnessDays caps a freshness window at one hundred years.
const MaxFreshnessDays = 100 * 365

// ParseFreshness converts strings like 7d, 2w, 1m or 1y to days. Empty means unbounded.
func ParseFreshness(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	m := freshnessPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, InvalidInput("freshness", fmt.Sprintf("%q must look like 7d, 2w, 1m or 1y", raw))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return 0, InvalidInput("freshness", fmt.Sprintf("%q must be a positive count", raw))
	}
	unit := freshnessDays[m[2]]
	if n > MaxFreshnessDays/unit {
		return 0, InvalidInput("freshness", fmt.Sprintf("%q exceeds %d days", raw, MaxFreshnessDays))
	}
	return n * unit, nil
}

// NormalizeSafeSearch maps caller input onto a known level.
func NormalizeSafeSearch(raw, fallback string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "":
		return fallback, nil
	case SafeSearchOff, SafeSearchModerate, SafeSearchStrict:
		return v, nil
	default:
		return "", InvalidInput("safesearch", "must be one of off, moderate, strict")
	}
}
