package extract

import (
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Readability runs the Mozilla readability port over the page.
type Readability struct{}

// NewReadability returns a Readability strategy.
func NewReadability() *Readability { return &Readability{} }

// Name implements Strategy.
func (Readability) Name() string { return "readability" }

// Attempt implements Strategy.
func (Readability) Attempt(html string, pageURL *url.URL) (Result, error) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("readability: %w", err)
	}
	text := cleanWhitespace(article.TextContent)
	if text == "" {
		return Result{}, ErrNoContent
	}

	md := map[string]string{}
	for key, v := range map[string]string{
		"author":    article.Byline,
		"site_name": article.SiteName,
		"image":     article.Image,
	} {
		if v = strings.TrimSpace(v); v != "" {
			md[key] = v
		}
	}
	return Result{
		Title:       strings.TrimSpace(article.Title),
		Description: strings.TrimSpace(article.Excerpt),
		Text:        text,
		Metadata:    md,
	}, nil
}
