package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/gateway"
	"github.com/JakeFAU/turboduck/internal/id/uuid"
	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Name is reported by the index route.
const Name = "TurboDuck Search API"

// Gateway is the pipeline the handlers drive.
type Gateway interface {
	Admit(identity string) error
	Search(ctx context.Context, req gateway.SearchRequest) (*search.Response, error)
	News(ctx context.Context, req gateway.NewsRequest) (*search.Response, error)
	Images(ctx context.Context, req gateway.ImagesRequest) (*search.Response, error)
	Videos(ctx context.Context, req gateway.VideosRequest) (*search.Response, error)
	Suggest(ctx context.Context, query, region string) (*search.Suggestions, error)
	Mix(ctx context.Context, query string, limit int) (*search.Mix, error)
	Extract(ctx context.Context, rawURL, mode string) (*search.Extraction, error)
	ExtractBatch(ctx context.Context, urls []string, mode string) (*search.BatchExtraction, error)
	Transcript(ctx context.Context, video string, languages []string) (*search.Transcript, error)
}

// Options tunes the HTTP layer.
type Options struct {
	Version        string
	RequestTimeout time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
	IDs            search.IDGenerator
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
	// Ready reports whether dependencies are usable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the gateway.
type Server struct {
	router   chi.Router
	gw       Gateway
	opts     Options
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer constructs a Server with middleware and routes.
func NewServer(gw Gateway, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.IDs == nil {
		opts.IDs = uuid.NewUUIDGenerator()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		gw:       gw,
		opts:     opts,
		logger:   logger,
		validate: newValidator(),
	}

	r := chi.NewRouter()
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.admissionMiddleware)
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Get("/search", s.handleSearch)
		r.Get("/news", s.handleNews)
		r.Get("/images", s.handleImages)
		r.Get("/videos", s.handleVideos)
		r.Get("/suggest", s.handleSuggest)
		r.Get("/mix", s.handleMix)
		r.Get("/extract", s.handleExtract)
		r.Post("/extract/batch", s.handleExtractBatch)
		r.Get("/transcript", s.handleTranscript)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

var routes = []string{
	"/search", "/news", "/images", "/videos", "/suggest", "/mix",
	"/extract", "/extract/batch", "/transcript",
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    Name,
		"version": s.opts.Version,
		"routes":  routes,
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
