// Package enrich fetches and extracts content for many URLs at once with a
// hard ceiling on outstanding network calls.
//
// Units are independent: one URL failing never cancels its siblings, and
// Run's output is aligned with its input regardless of completion order.
// Nothing is retried.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/turboduck/internal/extract"
	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/policy/throttle"
	"github.com/JakeFAU/turboduck/internal/search"
)

const (
	defaultConcurrency = 8
	defaultTimeout     = 10 * time.Second
)

// Mode selects how much work each unit does after fetching.
type Mode string

// Enrichment modes.
const (
	ModeNone    Mode = "none"
	ModeMeta    Mode = "meta"
	ModeContent Mode = "content"
)

// ParseMode validates a caller-supplied mode. Empty means fallback.
func ParseMode(raw string, fallback Mode) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return fallback, nil
	case ModeNone, ModeMeta, ModeContent:
		return m, nil
	default:
		return "", search.InvalidInput("mode", fmt.Sprintf("must be one of none, meta, content; got %q", raw))
	}
}

// Config tunes the pool.
type Config struct {
	Concurrency int
	// Timeout bounds one unit's throttle wait plus fetch.
	Timeout time.Duration
}

// Outcome is the result for one input URL.
type Outcome struct {
	URL         string
	FinalURL    string
	Title       string
	Description string
	Text        string
	Metadata    map[string]string
	Strategy    string
	Bytes       int
	Duration    time.Duration
	Err         error
}

// OK reports whether the unit produced content.
func (o Outcome) OK() bool { return o.Err == nil }

// Enrichment converts the outcome into the payload attached to a search result.
func (o Outcome) Enrichment() *search.Enrichment {
	if o.Err != nil {
		return &search.Enrichment{Error: o.Err.Error()}
	}
	return &search.Enrichment{
		Title:       o.Title,
		Description: o.Description,
		Text:        o.Text,
		Metadata:    o.Metadata,
		Strategy:    o.Strategy,
	}
}

// Pool is the bounded fetch/extract dispatcher.
type Pool struct {
	fetcher  search.Fetcher
	chain    *extract.Chain
	throttle *throttle.Throttle
	cfg      Config
	logger   *zap.Logger
}

// New builds a Pool. A nil throttle disables per-host pacing.
func New(fetcher search.Fetcher, chain *extract.Chain, th *throttle.Throttle, cfg Config, logger *zap.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if chain == nil {
		chain = extract.DefaultChain(logger)
	}
	return &Pool{fetcher: fetcher, chain: chain, throttle: th, cfg: cfg, logger: logger}
}

// Concurrency returns the pool's ceiling.
func (p *Pool) Concurrency() int { return p.cfg.Concurrency }

// Run enriches every URL and returns outcomes index-aligned with urls. At most
// Concurrency units are in flight. ModeNone returns empty outcomes without I/O.
func (p *Pool) Run(ctx context.Context, urls []string, mode Mode) []Outcome {
	out := make([]Outcome, len(urls))
	if mode == ModeNone {
		for i, u := range urls {
			out[i] = Outcome{URL: u}
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = p.unit(ctx, u, mode)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pool) unit(ctx context.Context, rawURL string, mode Mode) (outcome Outcome) {
	start := time.Now()
	outcome.URL = rawURL
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("enrichment unit panicked", zap.String("url", rawURL), zap.Any("panic", r))
			outcome = Outcome{URL: rawURL, Err: fmt.Errorf("%w: unit panicked: %v", search.ErrExtractionFailed, r)}
		}
		outcome.Duration = time.Since(start)
		metrics.ObserveEnrichment(string(mode), status(outcome.Err), outcome.Bytes)
		if outcome.Err != nil {
			p.logger.Debug("enrichment failed",
				zap.String("url", rawURL),
				zap.String("mode", string(mode)),
				zap.Duration("duration", outcome.Duration),
				zap.Error(outcome.Err),
			)
		}
	}()

	if err := validateURL(rawURL); err != nil {
		outcome.Err = err
		return outcome
	}

	resp, err := p.fetch(ctx, rawURL)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.FinalURL = resp.URL
	outcome.Bytes = len(resp.Body)
	if err := checkContentType(resp.Headers.Get("Content-Type")); err != nil {
		outcome.Err = err
		return outcome
	}

	html := string(resp.Body)
	snippet := extract.Snippet(html)
	switch mode {
	case ModeMeta:
		if snippet.Title == "" && snippet.Description == "" {
			outcome.Err = fmt.Errorf("%w: page has no title or description", search.ErrExtractionFailed)
			return outcome
		}
		outcome.Title = snippet.Title
		outcome.Description = snippet.Description
		outcome.Metadata = snippet.Metadata
		outcome.Strategy = snippet.Strategy
	default:
		res, err := p.chain.Extract(html, firstNonEmpty(resp.URL, rawURL))
		if err != nil {
			outcome.Err = err
			return outcome
		}
		outcome.Title = firstNonEmpty(res.Title, snippet.Title)
		outcome.Description = firstNonEmpty(res.Description, snippet.Description)
		outcome.Text = res.Text
		outcome.Metadata = res.Metadata
		outcome.Strategy = res.Strategy
	}
	return outcome
}

func (p *Pool) fetch(ctx context.Context, rawURL string) (search.FetchResponse, error) {
	unitCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.throttle.Wait(unitCtx, rawURL); err != nil {
		return search.FetchResponse{}, fmt.Errorf("%w: %w", search.ErrFetchFailed, err)
	}
	resp, err := p.fetcher.Fetch(unitCtx, search.FetchRequest{URL: rawURL, Timeout: p.cfg.Timeout})
	if err != nil {
		if errors.Is(err, search.ErrFetchFailed) {
			return search.FetchResponse{}, err
		}
		return search.FetchResponse{}, fmt.Errorf("%w: %w", search.ErrFetchFailed, err)
	}
	return resp, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", search.ErrFetchFailed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: unsupported url %q", search.ErrFetchFailed, rawURL)
	}
	return nil
}

func checkContentType(header string) error {
	if header == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil
	}
	switch {
	case strings.Contains(mediaType, "html"), strings.HasPrefix(mediaType, "text/"), strings.HasSuffix(mediaType, "+xml"):
		return nil
	default:
		return fmt.Errorf("%w: unsupported content type %s", search.ErrExtractionFailed, mediaType)
	}
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, search.ErrFetchFailed):
		return "fetch_failed"
	default:
		return "extract_failed"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
