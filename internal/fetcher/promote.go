// Package fetcher composes the static and headless fetchers.
package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Detector decides whether a static response needs JavaScript rendering.
type Detector interface {
	ShouldPromote(resp search.FetchResponse) bool
}

// Promoting fetches with the static fetcher first and re-renders with the
// headless fetcher when the detector flags the page. A failed render keeps the
// static response.
type Promoting struct {
	static   search.Fetcher
	headless search.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting builds a Promoting fetcher. With a nil headless fetcher or
// detector it behaves exactly like static.
func NewPromoting(static, headless search.Fetcher, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{static: static, headless: headless, detector: detector, logger: logger}
}

// Fetch implements search.Fetcher.
func (p *Promoting) Fetch(ctx context.Context, request search.FetchRequest) (search.FetchResponse, error) {
	resp, err := p.static.Fetch(ctx, request)
	if err != nil {
		return search.FetchResponse{}, err
	}
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(resp) {
		return resp, nil
	}

	rendered, err := p.headless.Fetch(ctx, request)
	if err != nil {
		metrics.ObserveHeadlessPromotion("failed")
		p.logger.Debug("headless render failed, keeping static body",
			zap.String("url", request.URL),
			zap.Error(err),
		)
		return resp, nil
	}
	metrics.ObserveHeadlessPromotion("rendered")
	return rendered, nil
}
