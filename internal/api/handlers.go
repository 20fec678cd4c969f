package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/turboduck/internal/gateway"
	"github.com/JakeFAU/turboduck/internal/search"
)

type pageParams struct {
	Query      string `query:"q" validate:"required"`
	Limit      int    `query:"limit" validate:"gte=0"`
	Page       int    `query:"page" validate:"gte=0"`
	Region     string `query:"region" validate:"omitempty,max=16"`
	SafeSearch string `query:"safesearch" validate:"omitempty,oneof=off moderate strict"`
}

type searchParams struct {
	pageParams
	Site        string `query:"site" validate:"omitempty,hostname_rfc1123"`
	ExcludeSite string `query:"exclude_site" validate:"omitempty,hostname_rfc1123"`
	Enrich      string `query:"enrich" validate:"omitempty,oneof=none meta content"`
}

type newsParams struct {
	pageParams
	Freshness string `query:"freshness" validate:"omitempty,max=8"`
	Enrich    string `query:"enrich" validate:"omitempty,oneof=none meta content"`
}

type imagesParams struct {
	pageParams
	Size  string `query:"size" validate:"omitempty,oneof=Small Medium Large Wallpaper"`
	Color string `query:"color" validate:"omitempty,max=16"`
}

type suggestParams struct {
	Query  string `query:"q" validate:"required"`
	Region string `query:"region" validate:"omitempty,max=16"`
}

type mixParams struct {
	Query string `query:"q" validate:"required"`
	Limit int    `query:"limit" validate:"gte=0"`
}

type extractParams struct {
	URL  string `query:"url" validate:"required,url"`
	Mode string `query:"mode" validate:"omitempty,oneof=content meta"`
}

type batchRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required,url"`
	Mode string   `json:"mode" validate:"omitempty,oneof=content meta"`
}

type transcriptParams struct {
	Video     string   `query:"video" validate:"required"`
	Languages []string `query:"lang" validate:"dive,max=16"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// check runs struct validation and converts failures into InvalidInput.
func (s *Server) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return search.InvalidInput("request", err.Error())
	}
	fe := verrs[0]
	reason := fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return search.InvalidInput(fe.Field(), "failed "+reason)
}

func intParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, search.InvalidInput(name, fmt.Sprintf("%q is not an integer", raw))
	}
	return n, nil
}

func readPage(values url.Values) (pageParams, error) {
	limit, err := intParam(values, "limit")
	if err != nil {
		return pageParams{}, err
	}
	page, err := intParam(values, "page")
	if err != nil {
		return pageParams{}, err
	}
	return pageParams{
		Query:      strings.TrimSpace(values.Get("q")),
		Limit:      limit,
		Page:       page,
		Region:     strings.TrimSpace(values.Get("region")),
		SafeSearch: strings.ToLower(strings.TrimSpace(values.Get("safesearch"))),
	}, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := readPage(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := searchParams{
		pageParams:  page,
		Site:        strings.TrimSpace(values.Get("site")),
		ExcludeSite: strings.TrimSpace(values.Get("exclude_site")),
		Enrich:      strings.ToLower(strings.TrimSpace(values.Get("enrich"))),
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Search(r.Context(), gateway.SearchRequest{
		Query:       p.Query,
		Limit:       p.Limit,
		Page:        p.Page,
		Region:      p.Region,
		SafeSearch:  p.SafeSearch,
		Site:        p.Site,
		ExcludeSite: p.ExcludeSite,
		Enrich:      p.Enrich,
	})
	s.respond(w, r, resp, err)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := readPage(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := newsParams{
		pageParams: page,
		Freshness:  strings.TrimSpace(values.Get("freshness")),
		Enrich:     strings.ToLower(strings.TrimSpace(values.Get("enrich"))),
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.News(r.Context(), gateway.NewsRequest{
		Query:      p.Query,
		Limit:      p.Limit,
		Page:       p.Page,
		Region:     p.Region,
		SafeSearch: p.SafeSearch,
		Freshness:  p.Freshness,
		Enrich:     p.Enrich,
	})
	s.respond(w, r, resp, err)
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page, err := readPage(values)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := imagesParams{
		pageParams: page,
		Size:       strings.TrimSpace(values.Get("size")),
		Color:      strings.TrimSpace(values.Get("color")),
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Images(r.Context(), gateway.ImagesRequest{
		Query:      p.Query,
		Limit:      p.Limit,
		Page:       p.Page,
		Region:     p.Region,
		SafeSearch: p.SafeSearch,
		Size:       p.Size,
		Color:      p.Color,
	})
	s.respond(w, r, resp, err)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	p, err := readPage(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Videos(r.Context(), gateway.VideosRequest{
		Query:      p.Query,
		Limit:      p.Limit,
		Page:       p.Page,
		Region:     p.Region,
		SafeSearch: p.SafeSearch,
	})
	s.respond(w, r, resp, err)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	p := suggestParams{
		Query:  strings.TrimSpace(values.Get("q")),
		Region: strings.TrimSpace(values.Get("region")),
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Suggest(r.Context(), p.Query, p.Region)
	s.respond(w, r, resp, err)
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, err := intParam(values, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := mixParams{Query: strings.TrimSpace(values.Get("q")), Limit: limit}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Mix(r.Context(), p.Query, p.Limit)
	s.respond(w, r, resp, err)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	p := extractParams{
		URL:  strings.TrimSpace(values.Get("url")),
		Mode: strings.ToLower(strings.TrimSpace(values.Get("mode"))),
	}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Extract(r.Context(), p.URL, p.Mode)
	s.respond(w, r, resp, err)
}

func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, r, search.InvalidInput("body", "invalid JSON"))
		return
	}
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if err := s.check(req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.ExtractBatch(r.Context(), req.URLs, req.Mode)
	s.respond(w, r, resp, err)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	var langs []string
	for _, raw := range values["lang"] {
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
	}
	p := transcriptParams{Video: strings.TrimSpace(values.Get("video")), Languages: langs}
	if err := s.check(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.gw.Transcript(r.Context(), p.Video, p.Languages)
	s.respond(w, r, resp, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, payload any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}
