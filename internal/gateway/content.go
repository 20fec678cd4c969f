package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/turboduck/internal/cache"
	"github.com/JakeFAU/turboduck/internal/canon"
	"github.com/JakeFAU/turboduck/internal/enrich"
	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
	"github.com/JakeFAU/turboduck/internal/transcript/youtube"
)

// ErrUnsupported is returned when a surface's collaborator is not configured.
var ErrUnsupported = errors.New("surface not configured")

// Suggest returns autocomplete phrases, deduplicated and capped.
func (s *Service) Suggest(ctx context.Context, query, region string) (*search.Suggestions, error) {
	q, err := requireQuery(query)
	if err != nil {
		return nil, err
	}
	ctx, span, start := s.start(ctx, RouteSuggest)
	defer span.End()

	sig := cache.Signature(RouteSuggest, map[string]string{"q": q, "region": region})
	if v, ok := s.lookup(RouteSuggest, sig); ok {
		if cached, ok := v.(*search.Suggestions); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, RouteSuggest, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	began := time.Now()
	phrases, err := s.backend.Suggestions(ctx, q, region)
	if err != nil {
		metrics.ObserveBackend("suggest", "error", time.Since(began))
		s.logger.Warn("suggestions failed", zap.String("backend", s.backend.Name()), zap.Error(err))
		return nil, fail(span, fmt.Errorf("%w: %s suggest: %v", search.ErrBackendUnavailable, s.backend.Name(), err))
	}
	metrics.ObserveBackend("suggest", "ok", time.Since(began))

	phrases = canon.Dedupe(phrases, strings.TrimSpace)
	if len(phrases) > s.cfg.MaxSuggestions {
		phrases = phrases[:s.cfg.MaxSuggestions]
	}
	resp := &search.Suggestions{Query: q, Suggestions: phrases}
	stored := *resp
	s.store(sig, &stored)
	resp.TookMs = s.elapsed(ctx, RouteSuggest, start, false)
	return resp, nil
}

// Mix queries web, news and images concurrently. Any failure fails the whole
// request and cancels the other queries.
func (s *Service) Mix(ctx context.Context, query string, limit int) (*search.Mix, error) {
	q, err := requireQuery(query)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = s.cfg.MixDefaultLimit
	}
	if limit < 1 || limit > s.cfg.MixMaxLimit {
		return nil, search.InvalidInput("limit", fmt.Sprintf("must be between 1 and %d", s.cfg.MixMaxLimit))
	}
	ctx, span, start := s.start(ctx, RouteMix)
	defer span.End()

	sig := cache.Signature(RouteMix, map[string]string{"q": q, "limit": strconv.Itoa(limit)})
	if v, ok := s.lookup(RouteMix, sig); ok {
		if cached, ok := v.(*search.Mix); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, RouteMix, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	resp := &search.Mix{Query: q}
	g, gctx := errgroup.WithContext(ctx)
	section := func(surface search.Surface, key func(search.Hit) string, dst *[]search.Hit) {
		g.Go(func() error {
			hits, err := s.query(gctx, surface, search.Query{
				Text:       q,
				SafeSearch: s.cfg.DefaultSafeSearch,
				MaxResults: limit,
			}, false)
			if err != nil {
				return err
			}
			hits = canon.Dedupe(hits, key)
			if len(hits) > limit {
				hits = hits[:limit]
			}
			*dst = hits
			return nil
		})
	}
	section(search.SurfaceWeb, contentKey, &resp.Web)
	section(search.SurfaceNews, contentKey, &resp.News)
	section(search.SurfaceImages, imageKey, &resp.Images)
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}
	if len(resp.Web)+len(resp.News)+len(resp.Images) == 0 {
		return nil, fail(span, fmt.Errorf("%w: %s mix returned no results", search.ErrBackendUnavailable, s.backend.Name()))
	}

	stored := *resp
	s.store(sig, &stored)
	resp.TookMs = s.elapsed(ctx, RouteMix, start, false)
	return resp, nil
}

// Extract fetches one URL and returns its content or snippet. Failures are
// returned, never cached.
func (s *Service) Extract(ctx context.Context, rawURL, rawMode string) (*search.Extraction, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return nil, search.InvalidInput("url", "must not be empty")
	}
	mode, err := contentMode(rawMode)
	if err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, fmt.Errorf("%w: extraction", ErrUnsupported)
	}
	ctx, span, start := s.start(ctx, RouteExtract)
	defer span.End()

	sig := cache.Signature(RouteExtract, map[string]string{"url": target, "mode": string(mode)})
	if v, ok := s.lookup(RouteExtract, sig); ok {
		if cached, ok := v.(*search.Extraction); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, RouteExtract, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	outcome := s.pool.Run(ctx, []string{target}, mode)[0]
	if outcome.Err != nil {
		return nil, fail(span, outcome.Err)
	}
	resp := extraction(outcome, mode)
	stored := resp
	s.store(sig, &stored)
	resp.TookMs = s.elapsed(ctx, RouteExtract, start, false)
	return &resp, nil
}

// ExtractBatch enriches up to MaxBatch URLs with index-aligned partial
// results. A batch with failures is still a successful, cacheable response.
func (s *Service) ExtractBatch(ctx context.Context, urls []string, rawMode string) (*search.BatchExtraction, error) {
	if len(urls) == 0 {
		return nil, search.InvalidInput("urls", "must not be empty")
	}
	if len(urls) > s.cfg.MaxBatch {
		return nil, search.InvalidInput("urls", fmt.Sprintf("at most %d per batch", s.cfg.MaxBatch))
	}
	targets := make([]string, len(urls))
	for i, u := range urls {
		targets[i] = strings.TrimSpace(u)
		if targets[i] == "" {
			return nil, search.InvalidInput("urls", fmt.Sprintf("entry %d is empty", i))
		}
	}
	mode, err := contentMode(rawMode)
	if err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, fmt.Errorf("%w: extraction", ErrUnsupported)
	}
	ctx, span, start := s.start(ctx, RouteBatch)
	defer span.End()

	sig := cache.Signature(RouteBatch, map[string]string{"urls": batchKey(targets), "mode": string(mode)})
	if v, ok := s.lookup(RouteBatch, sig); ok {
		if cached, ok := v.(*search.BatchExtraction); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, RouteBatch, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	outcomes := s.pool.Run(ctx, targets, mode)
	resp := &search.BatchExtraction{
		Mode:    string(mode),
		Count:   len(outcomes),
		Results: make([]search.Extraction, len(outcomes)),
	}
	for i, o := range outcomes {
		resp.Results[i] = extraction(o, mode)
		if o.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	stored := *resp
	s.store(sig, &stored)
	resp.TookMs = s.elapsed(ctx, RouteBatch, start, false)
	return resp, nil
}

// Transcript fetches caption segments for a video id or URL.
func (s *Service) Transcript(ctx context.Context, video string, languages []string) (*search.Transcript, error) {
	videoID, err := youtube.ParseVideoID(video)
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = s.cfg.DefaultLanguages
	}
	if s.transcripts == nil {
		return nil, fmt.Errorf("%w: transcripts", ErrUnsupported)
	}
	ctx, span, start := s.start(ctx, RouteTranscript)
	defer span.End()

	sig := cache.Signature(RouteTranscript, map[string]string{"video": videoID, "lang": strings.Join(langs, ",")})
	if v, ok := s.lookup(RouteTranscript, sig); ok {
		if cached, ok := v.(*search.Transcript); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, RouteTranscript, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	tr, err := s.transcripts.Transcript(ctx, videoID, langs)
	if err != nil {
		return nil, fail(span, err)
	}
	stored := tr
	s.store(sig, &stored)
	tr.TookMs = s.elapsed(ctx, RouteTranscript, start, false)
	return &tr, nil
}

// batchKey encodes an ordered URL list so no two distinct lists collide.
func batchKey(urls []string) string {
	escaped := make([]string, len(urls))
	for i, u := range urls {
		escaped[i] = url.QueryEscape(u)
	}
	return strconv.Itoa(len(urls)) + ":" + strings.Join(escaped, ",")
}

func contentMode(raw string) (enrich.Mode, error) {
	mode, err := enrich.ParseMode(raw, enrich.ModeContent)
	if err != nil {
		return "", err
	}
	if mode == enrich.ModeNone {
		return "", search.InvalidInput("mode", "must be content or meta")
	}
	return mode, nil
}

func extraction(o enrich.Outcome, mode enrich.Mode) search.Extraction {
	out := search.Extraction{URL: o.URL, Mode: string(mode)}
	if o.Err != nil {
		out.Error = o.Err.Error()
		return out
	}
	out.Title = o.Title
	out.Description = o.Description
	out.Text = o.Text
	out.Metadata = o.Metadata
	out.Strategy = o.Strategy
	return out
}
