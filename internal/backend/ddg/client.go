// Package ddg implements the search backend against DuckDuckGo's public
// endpoints: the HTML results page for web search, the JSON verticals for
// news, images and videos, and the autocomplete endpoint for suggestions.
package ddg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/policy/throttle"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Name is the source label attached to every response.
const Name = "duckduckgo"

const (
	defaultHTMLURL  = "https://html.duckduckgo.com/html/"
	defaultBaseURL  = "https://duckduckgo.com"
	defaultRegion   = "wt-wt"
	defaultMaxPages = 5
)

var (
	// ErrThrottled is returned when DuckDuckGo answers with its rate-limit page.
	ErrThrottled = errors.New("duckduckgo rate limited the request")
	// ErrNoToken is returned when the vqd token cannot be found.
	ErrNoToken = errors.New("duckduckgo vqd token not found")

	vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)
)

// Config tunes the client.
type Config struct {
	// HTMLURL is the form endpoint for web results.
	HTMLURL string
	// BaseURL hosts the vqd page, the JSON verticals and autocomplete.
	BaseURL string
	// Timeout bounds each upstream request.
	Timeout time.Duration
	// MaxPages bounds how many upstream pages one query may walk.
	MaxPages int
}

// Client is a search.Backend over DuckDuckGo.
type Client struct {
	cfg      Config
	fetcher  search.Fetcher
	throttle *throttle.Throttle
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New builds a Client. fetcher performs the HTTP exchanges; th paces them.
func New(cfg Config, fetcher search.Fetcher, th *throttle.Throttle, logger *zap.Logger) *Client {
	if cfg.HTMLURL == "" {
		cfg.HTMLURL = defaultHTMLURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		fetcher:  fetcher,
		throttle: th,
		tracer:   otel.Tracer("github.com/JakeFAU/turboduck/internal/backend/ddg"),
		logger:   logger,
	}
}

// Name implements search.Backend.
func (c *Client) Name() string { return Name }

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := endpoint
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		target = endpoint + sep + params.Encode()
	}
	return c.do(ctx, search.FetchRequest{URL: target, Method: http.MethodGet})
}

func (c *Client) post(ctx context.Context, endpoint string, form map[string]string) ([]byte, error) {
	return c.do(ctx, search.FetchRequest{URL: endpoint, Method: http.MethodPost, Form: form})
}

func (c *Client) do(ctx context.Context, req search.FetchRequest) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "ddg."+strings.ToLower(req.Method),
		trace.WithAttributes(attribute.String("http.url", redact(req.URL))))
	defer span.End()

	if err := c.throttle.Wait(ctx, req.URL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "throttle")
		return nil, err
	}
	req.Timeout = c.cfg.Timeout
	req.Headers = http.Header{
		"Referer":         {c.cfg.BaseURL + "/"},
		"Accept-Language": {"en-US,en;q=0.9"},
	}
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch")
		return nil, fmt.Errorf("ddg %s %s: %w", req.Method, redact(req.URL), err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode == http.StatusAccepted {
		span.SetStatus(codes.Error, "throttled")
		return nil, ErrThrottled
	}
	return resp.Body, nil
}

// token negotiates the vqd token the JSON verticals require.
func (c *Client) token(ctx context.Context, query string) (string, error) {
	body, err := c.get(ctx, c.cfg.BaseURL+"/", url.Values{"q": {query}})
	if err != nil {
		return "", err
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w for %q", ErrNoToken, query)
	}
	return string(m[1]), nil
}

// redact strips the query string so search terms stay out of traces.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func region(r string) string {
	if r == "" {
		return defaultRegion
	}
	return r
}

// textSafeSearch maps levels for web, news and videos.
func textSafeSearch(level string) string {
	switch level {
	case search.SafeSearchStrict:
		return "1"
	case search.SafeSearchOff:
		return "-2"
	default:
		return "-1"
	}
}

// imageSafeSearch maps levels for images, which only distinguish off.
func imageSafeSearch(level string) string {
	if level == search.SafeSearchOff {
		return "-1"
	}
	return "1"
}

// timeLimit maps a freshness window in days to DuckDuckGo's d/w/m/y scale,
// rounding up to the smallest window that covers it.
func timeLimit(days int) string {
	switch {
	case days <= 0:
		return ""
	case days <= 1:
		return "d"
	case days <= 7:
		return "w"
	case days <= 31:
		return "m"
	default:
		return "y"
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
