package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/JakeFAU/turboduck/internal/cache"
	"github.com/JakeFAU/turboduck/internal/canon"
	"github.com/JakeFAU/turboduck/internal/enrich"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Route names used for cache signatures and metrics.
const (
	RouteSearch     = "/search"
	RouteNews       = "/news"
	RouteImages     = "/images"
	RouteVideos     = "/videos"
	RouteSuggest    = "/suggest"
	RouteMix        = "/mix"
	RouteExtract    = "/extract"
	RouteBatch      = "/extract/batch"
	RouteTranscript = "/transcript"
)

// SearchRequest is a web search. Zero Limit and Page take defaults.
type SearchRequest struct {
	Query       string
	Limit       int
	Page        int
	Region      string
	SafeSearch  string
	Site        string
	ExcludeSite string
	Enrich      string
}

// NewsRequest is a news search; Freshness looks like 7d, 2w, 1m or 1y.
type NewsRequest struct {
	Query      string
	Limit      int
	Page       int
	Region     string
	SafeSearch string
	Freshness  string
	Enrich     string
}

// ImagesRequest is an image search.
type ImagesRequest struct {
	Query      string
	Limit      int
	Page       int
	Region     string
	SafeSearch string
	Size       string
	Color      string
}

// VideosRequest is a video search.
type VideosRequest struct {
	Query      string
	Limit      int
	Page       int
	Region     string
	SafeSearch string
}

// pipeline is one paginated run, fully validated.
type pipeline struct {
	route   string
	surface search.Surface
	display string
	params  map[string]string
	query   search.Query
	window  search.PageWindow
	key     func(search.Hit) string
	mode    enrich.Mode
}

func contentKey(h search.Hit) string { return canon.URLKey(h.URL) }

func imageKey(h search.Hit) string { return strings.TrimSpace(h.Image) }

// Search runs the web surface. Site filters become upstream operators.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*search.Response, error) {
	q, err := requireQuery(req.Query)
	if err != nil {
		return nil, err
	}
	window, err := s.window(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	safe, err := search.NormalizeSafeSearch(req.SafeSearch, s.cfg.DefaultSafeSearch)
	if err != nil {
		return nil, err
	}
	mode, err := enrich.ParseMode(req.Enrich, enrich.ModeNone)
	if err != nil {
		return nil, err
	}
	site, exclude := strings.TrimSpace(req.Site), strings.TrimSpace(req.ExcludeSite)
	text := q
	if site != "" {
		text += " site:" + site
	}
	if exclude != "" {
		text += " -site:" + exclude
	}
	return s.run(ctx, pipeline{
		route:   RouteSearch,
		surface: search.SurfaceWeb,
		display: q,
		params: map[string]string{
			"q":            q,
			"region":       req.Region,
			"safesearch":   safe,
			"site":         site,
			"exclude_site": exclude,
			"enrich":       enrichParam(mode),
		},
		query:  search.Query{Text: text, Region: req.Region, SafeSearch: safe},
		window: window,
		key:    contentKey,
		mode:   mode,
	})
}

// News runs the news surface.
func (s *Service) News(ctx context.Context, req NewsRequest) (*search.Response, error) {
	q, err := requireQuery(req.Query)
	if err != nil {
		return nil, err
	}
	window, err := s.window(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	safe, err := search.NormalizeSafeSearch(req.SafeSearch, s.cfg.DefaultSafeSearch)
	if err != nil {
		return nil, err
	}
	days, err := search.ParseFreshness(req.Freshness)
	if err != nil {
		return nil, err
	}
	mode, err := enrich.ParseMode(req.Enrich, enrich.ModeNone)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"q":          q,
		"region":     req.Region,
		"safesearch": safe,
		"enrich":     enrichParam(mode),
	}
	if days > 0 {
		params["freshness"] = strconv.Itoa(days)
	}
	return s.run(ctx, pipeline{
		route:   RouteNews,
		surface: search.SurfaceNews,
		display: q,
		params:  params,
		query:   search.Query{Text: q, Region: req.Region, SafeSearch: safe, TimeLimit: days},
		window:  window,
		key:     contentKey,
		mode:    mode,
	})
}

// Images runs the image surface. Images dedupe on the raw image URL.
func (s *Service) Images(ctx context.Context, req ImagesRequest) (*search.Response, error) {
	q, err := requireQuery(req.Query)
	if err != nil {
		return nil, err
	}
	window, err := s.window(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	safe, err := search.NormalizeSafeSearch(req.SafeSearch, s.cfg.DefaultSafeSearch)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, pipeline{
		route:   RouteImages,
		surface: search.SurfaceImages,
		display: q,
		params: map[string]string{
			"q":          q,
			"region":     req.Region,
			"safesearch": safe,
			"size":       req.Size,
			"color":      req.Color,
		},
		query:  search.Query{Text: q, Region: req.Region, SafeSearch: safe, Size: req.Size, Color: req.Color},
		window: window,
		key:    imageKey,
		mode:   enrich.ModeNone,
	})
}

// Videos runs the video surface.
func (s *Service) Videos(ctx context.Context, req VideosRequest) (*search.Response, error) {
	q, err := requireQuery(req.Query)
	if err != nil {
		return nil, err
	}
	window, err := s.window(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	safe, err := search.NormalizeSafeSearch(req.SafeSearch, s.cfg.DefaultSafeSearch)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, pipeline{
		route:   RouteVideos,
		surface: search.SurfaceVideos,
		display: q,
		params: map[string]string{
			"q":          q,
			"region":     req.Region,
			"safesearch": safe,
		},
		query:  search.Query{Text: q, Region: req.Region, SafeSearch: safe},
		window: window,
		key:    contentKey,
		mode:   enrich.ModeNone,
	})
}

func (s *Service) window(page, limit int) (search.PageWindow, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	return search.NewPageWindow(page, limit, s.cfg.MaxLimit, s.cfg.MaxPage)
}

// enrichParam keeps "none" out of the signature so an absent enrich
// parameter and enrich=none share a cache entry.
func enrichParam(mode enrich.Mode) string {
	if mode == enrich.ModeNone {
		return ""
	}
	return string(mode)
}

// run is the shared pipeline for paginated surfaces.
func (s *Service) run(ctx context.Context, p pipeline) (*search.Response, error) {
	ctx, span, start := s.start(ctx, p.route)
	defer span.End()

	p.params["limit"] = strconv.Itoa(p.window.PerPage)
	p.params["page"] = strconv.Itoa(p.window.Page)
	sig := cache.Signature(p.route, p.params)
	if v, ok := s.lookup(p.route, sig); ok {
		if cached, ok := v.(*search.Response); ok {
			resp := *cached
			resp.TookMs = s.elapsed(ctx, p.route, start, true)
			resp.Cached = true
			return &resp, nil
		}
	}

	p.query.MaxResults = p.window.FetchSize()
	hits, err := s.query(ctx, p.surface, p.query, true)
	if err != nil {
		return nil, fail(span, err)
	}

	page := search.Paginate(canon.Dedupe(hits, p.key), p.window)
	results := make([]search.Result, len(page))
	for i, h := range page {
		results[i] = search.Result{Hit: h}
	}
	s.enrich(ctx, results, p.mode)

	resp := &search.Response{
		Query:   p.display,
		Count:   len(results),
		Page:    p.window.Page,
		PerPage: p.window.PerPage,
		Results: results,
		Source:  s.cfg.Source,
	}
	stored := *resp
	s.store(sig, &stored)
	resp.TookMs = s.elapsed(ctx, p.route, start, false)
	return resp, nil
}

// enrich attaches pool outcomes to the page slice in place.
func (s *Service) enrich(ctx context.Context, results []search.Result, mode enrich.Mode) {
	if mode == enrich.ModeNone || s.pool == nil || len(results) == 0 {
		return
	}
	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	for i, o := range s.pool.Run(ctx, urls, mode) {
		results[i].Enrichment = o.Enrichment()
	}
}
