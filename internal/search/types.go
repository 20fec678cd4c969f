// Package search defines core types shared across the gateway subsystems.
package search

import (
	"net/http"
	"time"
)

// Surface names one upstream search vertical.
type Surface string

// Surfaces exposed by the backend collaborator.
const (
	SurfaceWeb    Surface = "web"
	SurfaceNews   Surface = "news"
	SurfaceImages Surface = "images"
	SurfaceVideos Surface = "videos"
)

// SafeSearch levels accepted by the backend.
const (
	SafeSearchOff      = "off"
	SafeSearchModerate = "moderate"
	SafeSearchStrict   = "strict"
)

// Hit is one raw backend record, immutable once received.
type Hit struct {
	Title       string            `json:"title,omitempty"`
	URL         string            `json:"url,omitempty"`
	Snippet     string            `json:"snippet,omitempty"`
	Source      string            `json:"source,omitempty"`
	Published   string            `json:"published,omitempty"`
	Image       string            `json:"image,omitempty"`
	Thumbnail   string            `json:"thumbnail,omitempty"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	Duration    string            `json:"duration,omitempty"`
	Publisher   string            `json:"publisher,omitempty"`
	EmbedURL    string            `json:"embed_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Query carries the caller's filters to the backend unmodified.
type Query struct {
	Text       string
	Region     string
	SafeSearch string
	MaxResults int
	// TimeLimit is the freshness window in days; zero means unbounded.
	TimeLimit int
	Size      string
	Color     string
}

// Enrichment is the fetched-and-extracted content attached to a result.
type Enrichment struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Text        string            `json:"text,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Failed reports whether enrichment was unavailable for the record.
func (e *Enrichment) Failed() bool {
	return e != nil && e.Error != ""
}

// Result is a deduplicated record, optionally enriched.
type Result struct {
	Hit
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}

// Response is the payload of every paginated search surface.
type Response struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Results []Result `json:"results"`
	TookMs  int64    `json:"took_ms"`
	Source  string   `json:"source"`
	Cached  bool     `json:"cached"`
}

// Suggestions is the payload of the autocomplete surface.
type Suggestions struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
	TookMs      int64    `json:"took_ms"`
	Cached      bool     `json:"cached"`
}

// Mix bundles web, news and image hits fetched concurrently.
type Mix struct {
	Query  string `json:"query"`
	Web    []Hit  `json:"web"`
	News   []Hit  `json:"news"`
	Images []Hit  `json:"images"`
	TookMs int64  `json:"took_ms"`
	Cached bool   `json:"cached"`
}

// Extraction is the payload of the single URL content surface.
type Extraction struct {
	URL         string            `json:"url"`
	Mode        string            `json:"mode"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Text        string            `json:"text,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Strategy    string            `json:"strategy,omitempty"`
	Error       string            `json:"error,omitempty"`
	TookMs      int64             `json:"took_ms"`
	Cached      bool              `json:"cached"`
}

// BatchExtraction holds index-aligned extraction results.
type BatchExtraction struct {
	Mode      string       `json:"mode"`
	Count     int          `json:"count"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []Extraction `json:"results"`
	TookMs    int64        `json:"took_ms"`
	Cached    bool         `json:"cached"`
}

// Segment is one timed piece of a video transcript.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Transcript is the payload of the transcript surface.
type Transcript struct {
	VideoID   string    `json:"video_id"`
	Language  string    `json:"language"`
	Generated bool      `json:"generated"`
	Segments  []Segment `json:"segments"`
	Text      string    `json:"text"`
	TookMs    int64     `json:"took_ms"`
	Cached    bool      `json:"cached"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Method  string
	Form    map[string]string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
