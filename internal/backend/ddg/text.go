package ddg

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/search"
)

// Text implements search.Backend by walking the HTML results pages.
func (c *Client) Text(ctx context.Context, q search.Query) ([]search.Hit, error) {
	form := map[string]string{
		"q":  q.Text,
		"b":  "",
		"kl": region(q.Region),
		"kp": textSafeSearch(q.SafeSearch),
	}
	if df := timeLimit(q.TimeLimit); df != "" {
		form["df"] = df
	}

	var hits []search.Hit
	for page := 0; page < c.cfg.MaxPages && form != nil; page++ {
		body, err := c.post(ctx, c.cfg.HTMLURL, form)
		if err != nil {
			if page > 0 && len(hits) > 0 {
				c.logger.Debug("stopping pagination after upstream error", zap.Int("page", page), zap.Error(err))
				break
			}
			return nil, err
		}
		pageHits, next, err := parseHTMLResults(body)
		if err != nil {
			return nil, err
		}
		hits = append(hits, pageHits...)
		if q.MaxResults > 0 && len(hits) >= q.MaxResults {
			break
		}
		form = next
	}
	return truncate(hits, q.MaxResults), nil
}

// parseHTMLResults extracts organic hits and the next-page form, if any.
func parseHTMLResults(body []byte) ([]search.Hit, map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse ddg html: %w", err)
	}

	var hits []search.Hit
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		target := resolveRedirect(href)
		if target == "" || strings.Contains(target, "duckduckgo.com/y.js") {
			return
		}
		hits = append(hits, search.Hit{
			Title:   collapse(link.Text()),
			URL:     target,
			Snippet: collapse(s.Find(".result__snippet").Text()),
			Source:  hostOf(target),
		})
	})

	var next map[string]string
	doc.Find("div.nav-link form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		submit, _ := form.Find("input[type='submit']").Attr("value")
		if !strings.EqualFold(strings.TrimSpace(submit), "next") {
			return true
		}
		next = map[string]string{}
		form.Find("input[type='hidden']").Each(func(_ int, in *goquery.Selection) {
			name, _ := in.Attr("name")
			value, _ := in.Attr("value")
			if name != "" {
				next[name] = value
			}
		})
		return false
	})
	if len(next) == 0 {
		next = nil
	}
	return hits, next, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= click-through links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		return u.Query().Get("uddg")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate[T any](items []T, n int) []T {
	if items == nil {
		items = []T{}
	}
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
