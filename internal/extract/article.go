package extract

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const noiseSelector = "nav, footer, header, aside, script, style, noscript, form, iframe, " +
	".ad, .ads, .advertisement, .sidebar, .cookie-banner, .popup, .share, .related, .comments"

// ArticleSelectors are tried in order for the main article body.
func ArticleSelectors() []string {
	return []string{
		"[itemprop='articleBody']",
		"article",
		".article-body",
		".article-content",
		".entry-content",
		".post-content",
		".story-body",
		"main",
	}
}

// Article extracts editorial pages: JSON-LD articleBody first, then known
// article containers. It never falls back to the whole body.
type Article struct {
	selectors []string
	minLength int
}

// NewArticle returns an Article strategy with the default selectors.
func NewArticle() *Article {
	return &Article{selectors: ArticleSelectors(), minLength: 80}
}

// Name implements Strategy.
func (a *Article) Name() string { return "article" }

// Attempt implements Strategy.
func (a *Article) Attempt(html string, _ *url.URL) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	res := Result{Metadata: documentMetadata(doc)}
	ld := linkedData(doc)
	res.Title = firstNonEmpty(ld["headline"], metaContent(doc, "og:title"))
	res.Description = firstNonEmpty(ld["description"], metaContent(doc, "og:description"), metaContent(doc, "description"))
	for k, v := range map[string]string{"author": ld["author"], "published": ld["datePublished"]} {
		if v != "" {
			res.Metadata[k] = v
		}
	}

	if body := cleanWhitespace(ld["articleBody"]); len(body) >= a.minLength {
		res.Text = body
		return res, nil
	}

	doc.Find(noiseSelector).Remove()
	for _, selector := range a.selectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		text := cleanWhitespace(blockText(selection.First()))
		if len(text) >= a.minLength {
			res.Text = text
			return res, nil
		}
	}
	return Result{}, ErrNoContent
}

// blockText joins paragraph-level text so block boundaries become newlines.
func blockText(sel *goquery.Selection) string {
	blocks := sel.Find("p, h1, h2, h3, h4, li, blockquote, pre")
	if blocks.Length() == 0 {
		return sel.Text()
	}
	var b strings.Builder
	blocks.Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		b.WriteString(s.Text())
		b.WriteByte('\n')
	})
	return b.String()
}

func documentMetadata(doc *goquery.Document) map[string]string {
	md := map[string]string{}
	pairs := map[string]string{
		"author":         "author",
		"site_name":      "og:site_name",
		"image":          "og:image",
		"published":      "article:published_time",
		"modified":       "article:modified_time",
		"canonical_type": "og:type",
	}
	for key, name := range pairs {
		if v := metaContent(doc, name); v != "" {
			md[key] = v
		}
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		md["language"] = lang
	}
	if href, ok := doc.Find("link[rel='canonical']").Attr("href"); ok && href != "" {
		md["canonical"] = href
	}
	return md
}

func metaContent(doc *goquery.Document, name string) string {
	var out string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		n, _ := s.Attr("name")
		if !strings.EqualFold(prop, name) && !strings.EqualFold(n, name) {
			return true
		}
		content, _ := s.Attr("content")
		out = strings.TrimSpace(content)
		return out == ""
	})
	return out
}

// linkedData flattens the first JSON-LD Article-like object into string fields.
func linkedData(doc *goquery.Document) map[string]string {
	out := map[string]string{}
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return true
		}
		obj := findArticleObject(raw)
		if obj == nil {
			return true
		}
		for _, key := range []string{"headline", "description", "articleBody", "datePublished"} {
			if v, ok := obj[key].(string); ok {
				out[key] = strings.TrimSpace(v)
			}
		}
		out["author"] = authorName(obj["author"])
		return false
	})
	return out
}

func findArticleObject(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if obj := findArticleObject(item); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if _, ok := node["articleBody"]; ok {
			return node
		}
		if _, ok := node["headline"]; ok {
			return node
		}
		if graph, ok := node["@graph"]; ok {
			return findArticleObject(graph)
		}
	}
	return nil
}

func authorName(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case map[string]any:
		name, _ := a["name"].(string)
		return name
	case []any:
		names := make([]string, 0, len(a))
		for _, item := range a {
			if n := authorName(item); n != "" {
				names = append(names, n)
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// cleanWhitespace trims every line and drops blank ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
