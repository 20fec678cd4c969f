// Package gateway runs the aggregation pipeline behind every surface:
// admission, cache lookup, backend query, dedupe, pagination, optional
// enrichment, then cache store. Transports call Admit before decoding a
// request; the surface methods run the remaining states.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/cache"
	"github.com/JakeFAU/turboduck/internal/clock/system"
	"github.com/JakeFAU/turboduck/internal/enrich"
	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Admitter decides whether an identity may run another pipeline.
type Admitter interface {
	Admit(identity string) error
}

// Config holds request bounds and defaults.
type Config struct {
	Source            string
	DefaultLimit      int
	MaxLimit          int
	MaxPage           int
	MixDefaultLimit   int
	MixMaxLimit       int
	DefaultSafeSearch string
	MaxSuggestions    int
	MaxBatch          int
	DefaultLanguages  []string
	// CacheTTL overrides the store default when positive.
	CacheTTL time.Duration
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		Source:            "duckduckgo",
		DefaultLimit:      10,
		MaxLimit:          50,
		MaxPage:           20,
		MixDefaultLimit:   5,
		MixMaxLimit:       20,
		DefaultSafeSearch: search.SafeSearchModerate,
		MaxSuggestions:    20,
		MaxBatch:          20,
		DefaultLanguages:  []string{"en"},
	}
}

// Deps are the collaborators a Service runs against. Only Backend is required.
type Deps struct {
	Backend     search.Backend
	Pool        *enrich.Pool
	Transcripts search.Transcripts
	Cache       *cache.Store[any]
	Admitter    Admitter
	Clock       search.Clock
	Logger      *zap.Logger
}

// Service implements every search and content surface.
type Service struct {
	backend     search.Backend
	pool        *enrich.Pool
	transcripts search.Transcripts
	cache       *cache.Store[any]
	admitter    Admitter
	clock       search.Clock
	cfg         Config
	logger      *zap.Logger
	tracer      trace.Tracer
	latency     metric.Float64Histogram
}

// New validates deps and fills config defaults.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Backend == nil {
		return nil, errors.New("gateway requires a search backend")
	}
	def := DefaultConfig()
	if cfg.Source == "" {
		cfg.Source = deps.Backend.Name()
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(def.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.MixMaxLimit <= 0 {
		cfg.MixMaxLimit = def.MixMaxLimit
	}
	if cfg.MixDefaultLimit <= 0 || cfg.MixDefaultLimit > cfg.MixMaxLimit {
		cfg.MixDefaultLimit = min(def.MixDefaultLimit, cfg.MixMaxLimit)
	}
	if cfg.DefaultSafeSearch == "" {
		cfg.DefaultSafeSearch = def.DefaultSafeSearch
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = def.MaxSuggestions
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if len(cfg.DefaultLanguages) == 0 {
		cfg.DefaultLanguages = def.DefaultLanguages
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	latency, err := otel.Meter("github.com/JakeFAU/turboduck/internal/gateway").Float64Histogram(
		"turboduck_pipeline_duration",
		metric.WithDescription("End-to-end pipeline latency for successful requests."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline histogram: %w", err)
	}
	return &Service{
		backend:     deps.Backend,
		pool:        deps.Pool,
		transcripts: deps.Transcripts,
		cache:       deps.Cache,
		admitter:    deps.Admitter,
		clock:       deps.Clock,
		cfg:         cfg,
		logger:      deps.Logger,
		tracer:      otel.Tracer("github.com/JakeFAU/turboduck/internal/gateway"),
		latency:     latency,
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Admit is the first pipeline state: it reports whether identity may run
// another request. Without an admitter every identity is admitted.
func (s *Service) Admit(identity string) error {
	if s.admitter == nil || identity == "" {
		return nil
	}
	return s.admitter.Admit(identity)
}

func (s *Service) start(ctx context.Context, route string) (context.Context, trace.Span, time.Time) {
	ctx, span := s.tracer.Start(ctx, "gateway"+strings.ReplaceAll(route, "/", "."),
		trace.WithAttributes(attribute.String("route", route)))
	return ctx, span, s.clock.Now()
}

// elapsed computes took_ms and records it against route.
func (s *Service) elapsed(ctx context.Context, route string, start time.Time, cached bool) int64 {
	took := s.clock.Now().Sub(start)
	s.latency.Record(ctx, float64(took.Microseconds())/1000,
		metric.WithAttributes(attribute.String("route", route), attribute.Bool("cached", cached)))
	return took.Milliseconds()
}

func (s *Service) lookup(route, sig string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(sig)
	if ok {
		metrics.ObserveCacheLookup(route, "hit")
	} else {
		metrics.ObserveCacheLookup(route, "miss")
	}
	return v, ok
}

func (s *Service) store(sig string, v any) {
	if s.cache != nil {
		s.cache.Put(sig, v, s.cfg.CacheTTL)
	}
}

// query calls one backend surface and meters it. An empty answer counts as
// unavailable when requireHits is set.
func (s *Service) query(ctx context.Context, surface search.Surface, q search.Query, requireHits bool) ([]search.Hit, error) {
	ctx, span := s.tracer.Start(ctx, "gateway.backend",
		trace.WithAttributes(
			attribute.String("surface", string(surface)),
			attribute.Int("max_results", q.MaxResults),
		))
	defer span.End()

	start := time.Now()
	var (
		hits []search.Hit
		err  error
	)
	switch surface {
	case search.SurfaceNews:
		hits, err = s.backend.News(ctx, q)
	case search.SurfaceImages:
		hits, err = s.backend.Images(ctx, q)
	case search.SurfaceVideos:
		hits, err = s.backend.Videos(ctx, q)
	default:
		hits, err = s.backend.Text(ctx, q)
	}
	dur := time.Since(start)

	switch {
	case err != nil:
		metrics.ObserveBackend(string(surface), "error", dur)
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend query failed")
		s.logger.Warn("backend query failed",
			zap.String("backend", s.backend.Name()),
			zap.String("surface", string(surface)),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s %s: %v", search.ErrBackendUnavailable, s.backend.Name(), surface, err)
	case len(hits) == 0 && requireHits:
		metrics.ObserveBackend(string(surface), "empty", dur)
		span.SetStatus(codes.Error, "backend returned nothing")
		s.logger.Warn("backend returned no results",
			zap.String("backend", s.backend.Name()),
			zap.String("surface", string(surface)),
		)
		return nil, fmt.Errorf("%w: %s %s returned no results", search.ErrBackendUnavailable, s.backend.Name(), surface)
	}
	metrics.ObserveBackend(string(surface), "ok", dur)
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func requireQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", search.InvalidInput("q", "must not be empty")
	}
	return q, nil
}
