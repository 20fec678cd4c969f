package ddg

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/turboduck/internal/search"
)

type imageResult struct {
	Title     string `json:"title"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Source    string `json:"source"`
}

type videoResult struct {
	Content     string `json:"content"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Publisher   string `json:"publisher"`
	Published   string `json:"published"`
	EmbedURL    string `json:"embed_url"`
	Uploader    string `json:"uploader"`
	Images      struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
		Small  string `json:"small"`
	} `json:"images"`
}

type newsResult struct {
	Date    int64  `json:"date"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
	Image   string `json:"image"`
	Source  string `json:"source"`
}

type page[T any] struct {
	Results []T    `json:"results"`
	Next    string `json:"next"`
}

// Images implements search.Backend.
func (c *Client) Images(ctx context.Context, q search.Query) ([]search.Hit, error) {
	filters := fmt.Sprintf("time:%s,size:%s,color:%s,type:,layout:,license:",
		timeLimitFilter(q.TimeLimit), q.Size, strings.ToLower(q.Color))
	params := url.Values{
		"l": {region(q.Region)},
		"o": {"json"},
		"f": {filters},
		"p": {imageSafeSearch(q.SafeSearch)},
	}
	rows, err := walk[imageResult](ctx, c, "/i.js", q, params)
	if err != nil {
		return nil, err
	}
	hits := make([]search.Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, search.Hit{
			Title:     r.Title,
			URL:       r.URL,
			Image:     r.Image,
			Thumbnail: r.Thumbnail,
			Width:     r.Width,
			Height:    r.Height,
			Source:    r.Source,
		})
	}
	return truncate(hits, q.MaxResults), nil
}

// Videos implements search.Backend.
func (c *Client) Videos(ctx context.Context, q search.Query) ([]search.Hit, error) {
	params := url.Values{
		"l": {region(q.Region)},
		"o": {"json"},
		"f": {fmt.Sprintf("publishedAfter:%s,videoDuration:,videoLicense:", timeLimit(q.TimeLimit))},
		"p": {textSafeSearch(q.SafeSearch)},
	}
	rows, err := walk[videoResult](ctx, c, "/v.js", q, params)
	if err != nil {
		return nil, err
	}
	hits := make([]search.Hit, 0, len(rows))
	for _, r := range rows {
		thumb := r.Images.Medium
		if thumb == "" {
			thumb = r.Images.Small
		}
		hits = append(hits, search.Hit{
			Title:       r.Title,
			URL:         r.Content,
			Description: r.Description,
			Duration:    r.Duration,
			Publisher:   r.Publisher,
			Published:   r.Published,
			EmbedURL:    r.EmbedURL,
			Image:       r.Images.Large,
			Thumbnail:   thumb,
			Source:      hostOf(r.Content),
		})
	}
	return truncate(hits, q.MaxResults), nil
}

// News implements search.Backend.
func (c *Client) News(ctx context.Context, q search.Query) ([]search.Hit, error) {
	params := url.Values{
		"l":     {region(q.Region)},
		"o":     {"json"},
		"noamp": {"1"},
		"p":     {textSafeSearch(q.SafeSearch)},
	}
	if df := timeLimit(q.TimeLimit); df != "" {
		params.Set("df", df)
	}
	rows, err := walk[newsResult](ctx, c, "/news.js", q, params)
	if err != nil {
		return nil, err
	}
	hits := make([]search.Hit, 0, len(rows))
	for _, r := range rows {
		var published string
		if r.Date > 0 {
			published = time.Unix(r.Date, 0).UTC().Format(time.RFC3339)
		}
		hits = append(hits, search.Hit{
			Title:     r.Title,
			URL:       r.URL,
			Snippet:   r.Excerpt,
			Published: published,
			Image:     r.Image,
			Source:    r.Source,
		})
	}
	return truncate(hits, q.MaxResults), nil
}

type suggestion struct {
	Phrase string `json:"phrase"`
	Value  string `json:"value"`
}

// Suggestions implements search.Backend.
func (c *Client) Suggestions(ctx context.Context, text string, reg string) ([]string, error) {
	params := url.Values{"q": {text}, "kl": {region(reg)}}
	body, err := c.get(ctx, c.cfg.BaseURL+"/ac/", params)
	if err != nil {
		return nil, err
	}
	var rows []suggestion
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ddg suggestions: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		phrase := r.Phrase
		if phrase == "" {
			phrase = r.Value
		}
		if phrase != "" {
			out = append(out, phrase)
		}
	}
	return out, nil
}

// walk follows a JSON vertical's next links until enough rows are collected.
func walk[T any](ctx context.Context, c *Client, path string, q search.Query, params url.Values) ([]T, error) {
	vqd, err := c.token(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	params.Set("q", q.Text)
	params.Set("vqd", vqd)

	var rows []T
	endpoint := c.cfg.BaseURL + path
	for pageNo := 0; pageNo < c.cfg.MaxPages; pageNo++ {
		body, err := c.get(ctx, endpoint, params)
		if err != nil {
			if len(rows) > 0 {
				break
			}
			return nil, err
		}
		var p page[T]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode ddg %s: %w", path, err)
		}
		rows = append(rows, p.Results...)
		if p.Next == "" || (q.MaxResults > 0 && len(rows) >= q.MaxResults) {
			break
		}
		endpoint, params = nextPage(c.cfg.BaseURL, p.Next, vqd)
	}
	return rows, nil
}

// nextPage resolves a relative "next" link such as "i.js?q=x&s=100".
func nextPage(base, next, vqd string) (string, url.Values) {
	rel, err := url.Parse(next)
	if err != nil {
		return base + "/" + strings.TrimPrefix(next, "/"), nil
	}
	params := rel.Query()
	if params.Get("vqd") == "" {
		params.Set("vqd", vqd)
	}
	return base + "/" + strings.TrimPrefix(rel.Path, "/"), params
}

// timeLimitFilter maps days to the image vertical's Day/Week/Month/Year names.
func timeLimitFilter(days int) string {
	switch timeLimit(days) {
	case "d":
		return "Day"
	case "w":
		return "Week"
	case "m":
		return "Month"
	case "y":
		return "Year"
	default:
		return ""
	}
}
