package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Result is what a strategy extracted from one page.
type Result struct {
	Title       string
	Description string
	Text        string
	Metadata    map[string]string
	Strategy    string
}

// Strategy is one extraction approach.
type Strategy interface {
	Name() string
	Attempt(html string, pageURL *url.URL) (Result, error)
}

// ErrNoContent is returned by a strategy that ran cleanly but found no text.
var ErrNoContent = errors.New("no content found")

// Chain runs strategies in order until one produces text.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// DefaultChain returns article → readability → plaintext.
func DefaultChain(logger *zap.Logger) *Chain {
	return NewChain(logger, NewArticle(), NewReadability(), NewPlainText())
}

// Strategies lists the strategy names in priority order.
func (c *Chain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Extract returns the first successful strategy's result. A strategy that
// errors, panics or yields blank text is skipped; only exhaustion is reported,
// wrapped in search.ErrExtractionFailed.
func (c *Chain) Extract(html string, pageURL string) (Result, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u == nil {
		u = &url.URL{}
	}

	var failures []error
	for _, s := range c.strategies {
		res, err := attempt(s, html, u)
		if err == nil && strings.TrimSpace(res.Text) == "" {
			err = ErrNoContent
		}
		if err != nil {
			c.logger.Debug("extraction strategy skipped",
				zap.String("strategy", s.Name()),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		res.Strategy = s.Name()
		if res.Title == "" {
			res.Title = PageTitle(html)
		}
		metrics.ObserveExtractionStrategy(res.Strategy)
		return res, nil
	}
	if len(failures) == 0 {
		return Result{}, fmt.Errorf("%w: no strategies configured", search.ErrExtractionFailed)
	}
	return Result{}, fmt.Errorf("%w: %w", search.ErrExtractionFailed, errors.Join(failures...))
}

func attempt(s Strategy, html string, u *url.URL) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Attempt(html, u)
}
