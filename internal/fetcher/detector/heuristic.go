// Package detector decides when a static fetch should be re-rendered headlessly.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/turboduck/internal/search"
)

const (
	defaultBodyThreshold = 2048
	defaultMinTextChars  = 200
)

// Config tunes the heuristic.
type Config struct {
	// BodyLengthThreshold marks short, script-heavy bodies as JS shells.
	BodyLengthThreshold int
	// MinTextChars is the visible text below which a page counts as unrendered.
	MinTextChars int
	// Keywords are lowercase phrases that signal a JS-only page.
	Keywords []string
}

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	bodyThreshold int
	minTextChars  int
	keywords      [][]byte
}

// NewHeuristic creates a new detector.
func NewHeuristic(cfg Config) *Heuristic {
	if cfg.BodyLengthThreshold <= 0 {
		cfg.BodyLengthThreshold = defaultBodyThreshold
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = defaultMinTextChars
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = []string{"enable javascript", "requires javascript", "you need to enable js"}
	}
	keywords := make([][]byte, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, bytes.ToLower([]byte(kw)))
		}
	}
	return &Heuristic{
		bodyThreshold: cfg.BodyLengthThreshold,
		minTextChars:  cfg.MinTextChars,
		keywords:      keywords,
	}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp search.FetchResponse) bool {
	if h == nil || resp.StatusCode != http.StatusOK {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < h.bodyThreshold && scriptDensityHigh(body) {
		return true
	}
	lower := bytes.ToLower(body)
	for _, kw := range h.keywords {
		if bytes.Contains(lower, kw) {
			return true
		}
	}
	hasMarker := false
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			hasMarker = true
			break
		}
	}
	return hasMarker && visibleTextLen(body) < h.minTextChars
}

// visibleTextLen counts non-space characters a reader would see in the body.
func visibleTextLen(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	bodySel := doc.Find("body")
	bodySel.Find("script, style, noscript, template").Remove()
	return len(strings.Join(strings.Fields(bodySel.Text()), ""))
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		var nextSearch int
		if relativeEnd := strings.Index(lower[contentStart:], closeTag); relativeEnd == -1 {
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	return scriptCoverage > 0 && scriptCoverage*100/total >= 25
}
