// Package server provides the core application server and dependency assembly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/api"
	"github.com/JakeFAU/turboduck/internal/backend/ddg"
	"github.com/JakeFAU/turboduck/internal/cache"
	"github.com/JakeFAU/turboduck/internal/clock/system"
	"github.com/JakeFAU/turboduck/internal/config"
	"github.com/JakeFAU/turboduck/internal/enrich"
	"github.com/JakeFAU/turboduck/internal/extract"
	"github.com/JakeFAU/turboduck/internal/fetcher"
	collyfetcher "github.com/JakeFAU/turboduck/internal/fetcher/colly"
	"github.com/JakeFAU/turboduck/internal/fetcher/detector"
	headlessfetcher "github.com/JakeFAU/turboduck/internal/fetcher/headless"
	"github.com/JakeFAU/turboduck/internal/gateway"
	"github.com/JakeFAU/turboduck/internal/id/uuid"
	"github.com/JakeFAU/turboduck/internal/logging"
	"github.com/JakeFAU/turboduck/internal/policy/ratelimit"
	"github.com/JakeFAU/turboduck/internal/policy/throttle"
	"github.com/JakeFAU/turboduck/internal/search"
	"github.com/JakeFAU/turboduck/internal/telemetry"
	"github.com/JakeFAU/turboduck/internal/transcript/youtube"
)

// Version is stamped at build time.
var Version = "1.1.0"

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	gateway   *gateway.Service
	apiServer *api.Server
	limiter   *ratelimit.Limiter
	cache     *cache.Store[any]
	headless  *headlessfetcher.Fetcher
	telemetry *telemetry.Providers
	draining  atomic.Bool
	closeOnce sync.Once
}

// Gateway exposes the pipeline for one-shot CLI use.
func (a *App) Gateway() *gateway.Service { return a.gateway }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Options overrides ambient collaborators during Build.
type Options struct {
	// Logger replaces the logger built from cfg.Logging.
	Logger *zap.Logger
	// Registerer receives the OpenTelemetry metric bridge. Nil uses the default registry.
	Registerer prometheus.Registerer
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	return BuildWith(ctx, cfg, Options{})
}

// BuildWith is Build with caller-supplied ambient collaborators.
func BuildWith(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("ratelimit", cfg.RateLimit.Enabled),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	var err error
	app.telemetry, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
		ProjectID:   cfg.Telemetry.ProjectID,
		Registerer:  opts.Registerer,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	clock := system.New()
	deps := gateway.Deps{Clock: clock, Logger: logger.Named("gateway")}

	if cfg.RateLimit.Enabled {
		app.limiter, err = ratelimit.New(ratelimit.Config{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		}, clock)
		if err != nil {
			return nil, app.abort(ctx, fmt.Errorf("rate limiter init failed: %w", err))
		}
		deps.Admitter = app.limiter
	}
	if cfg.Cache.Enabled {
		app.cache, err = cache.New[any](cache.Config{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
			Shards:     cfg.Cache.Shards,
		}, clock)
		if err != nil {
			return nil, app.abort(ctx, fmt.Errorf("cache init failed: %w", err))
		}
		deps.Cache = app.cache
	}

	backendFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Backend.UserAgent,
		Timeout:      cfg.Backend.Timeout,
		MaxBodyBytes: cfg.Backend.MaxBodyBytes,
	})
	deps.Backend = ddg.New(ddg.Config{
		HTMLURL:  cfg.Backend.HTMLURL,
		BaseURL:  cfg.Backend.APIURL,
		Timeout:  cfg.Backend.Timeout,
		MaxPages: cfg.Backend.MaxPages,
	}, backendFetcher, throttle.New(throttle.Config{Name: "backend", RPS: cfg.Backend.RPS, Burst: cfg.Backend.Burst}), logger.Named("ddg"))
	logger.Info("using duckduckgo backend", zap.String("user_agent", cfg.Backend.UserAgent))

	pageFetcher, err := app.pageFetcher()
	if err != nil {
		return nil, app.abort(ctx, err)
	}
	chain := extract.DefaultChain(logger.Named("extract"))
	pool := enrich.New(
		pageFetcher,
		chain,
		throttle.New(throttle.Config{
			Name:     "enrich",
			RPS:      cfg.Enrich.PerHostRPS,
			Burst:    cfg.Enrich.PerHostBurst,
			MaxHosts: cfg.Enrich.MaxHosts,
		}),
		enrich.Config{Concurrency: cfg.Enrich.Concurrency, Timeout: cfg.Enrich.Timeout},
		logger.Named("enrich"),
	)
	logger.Info("enrichment pool ready",
		zap.Int("concurrency", pool.Concurrency()),
		zap.Strings("strategies", chain.Strategies()),
	)
	deps.Pool = pool
	deps.Transcripts = youtube.New(youtube.Config{
		BaseURL: cfg.Transcript.BaseURL,
		Timeout: cfg.Transcript.Timeout,
	}, backendFetcher, logger.Named("transcript"))

	app.gateway, err = gateway.New(deps, gateway.Config{
		Source:            ddg.Name,
		DefaultLimit:      cfg.Search.DefaultLimit,
		MaxLimit:          cfg.Search.MaxLimit,
		MaxPage:           cfg.Search.MaxPage,
		MixDefaultLimit:   cfg.Search.MixDefaultLimit,
		MixMaxLimit:       cfg.Search.MixMaxLimit,
		DefaultSafeSearch: cfg.Search.DefaultSafeSearch,
		MaxSuggestions:    cfg.Search.MaxSuggestions,
		MaxBatch:          cfg.Enrich.MaxBatch,
		DefaultLanguages:  cfg.Transcript.DefaultLanguages,
		CacheTTL:          cfg.Cache.TTL,
	})
	if err != nil {
		return nil, app.abort(ctx, fmt.Errorf("gateway init failed: %w", err))
	}

	app.apiServer = api.NewServer(app.gateway, api.Options{
		Version:           Version,
		RequestTimeout:    cfg.Server.RequestTimeout,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		IDs:               uuid.NewUUIDGenerator(),
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		Ready:             app.ready,
	}, logger.Named("api"))

	return app, nil
}

// pageFetcher builds the enrichment fetcher, promoting JS-only pages to
// headless Chrome when enabled.
func (a *App) pageFetcher() (search.Fetcher, error) {
	cfg := a.cfg
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Enrich.UserAgent,
		RespectRobots: cfg.Enrich.RespectRobots,
		Timeout:       cfg.Enrich.Timeout,
		MaxBodyBytes:  cfg.Enrich.MaxBodyBytes,
	})
	if !cfg.Headless.Enabled {
		return static, nil
	}
	var err error
	a.headless, err = headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Enrich.UserAgent,
		NavigationTimeout: cfg.Headless.NavTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	detect := detector.NewHeuristic(detector.Config{BodyLengthThreshold: cfg.Headless.PromotionThreshold})
	return fetcher.NewPromoting(static, a.headless, detect, a.logger.Named("fetcher")), nil
}

// errDraining is reported by readiness checks once shutdown starts.
var errDraining = errors.New("shutting down")

func (a *App) ready(context.Context) error {
	if a.draining.Load() {
		return errDraining
	}
	return nil
}

func (a *App) abort(ctx context.Context, err error) error {
	_ = a.Close(ctx)
	return err
}

// StartMaintenance runs the limiter and cache sweepers until ctx is done.
func (a *App) StartMaintenance(ctx context.Context) {
	if a.limiter != nil && a.cfg.RateLimit.SweepInterval > 0 {
		go a.limiter.Run(ctx, a.cfg.RateLimit.SweepInterval)
	}
	if a.cache != nil && a.cfg.Cache.SweepInterval > 0 {
		go a.cache.Run(ctx, a.cfg.Cache.SweepInterval)
	}
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started", zap.String("version", Version))
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.StartMaintenance(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")
	a.draining.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application. It is safe to call twice.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		if a.headless != nil {
			a.headless.Close()
		}
		if a.telemetry != nil {
			if shutdownErr := a.telemetry.Shutdown(ctx); shutdownErr != nil {
				a.logger.Warn("telemetry shutdown failed", zap.Error(shutdownErr))
				err = shutdownErr
			}
		}
		a.logger.Info("shutdown complete")
		_ = a.logger.Sync()
	})
	return err
}
