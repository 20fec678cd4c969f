package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/turboduck/internal/cache"
	"github.com/JakeFAU/turboduck/internal/enrich"
	"github.com/JakeFAU/turboduck/internal/policy/ratelimit"
	"github.com/JakeFAU/turboduck/internal/search"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBackend struct {
	mu          sync.Mutex
	hits        map[search.Surface][]search.Hit
	errs        map[search.Surface]error
	suggestions []string
	queries     []search.Query
	calls       int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{hits: map[search.Surface][]search.Hit{}, errs: map[search.Surface]error{}}
}

func (b *fakeBackend) answer(surface search.Surface, q search.Query) ([]search.Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.queries = append(b.queries, q)
	if err := b.errs[surface]; err != nil {
		return nil, err
	}
	return append([]search.Hit(nil), b.hits[surface]...), nil
}

func (b *fakeBackend) Text(_ context.Context, q search.Query) ([]search.Hit, error) {
	return b.answer(search.SurfaceWeb, q)
}

func (b *fakeBackend) News(_ context.Context, q search.Query) ([]search.Hit, error) {
	return b.answer(search.SurfaceNews, q)
}

func (b *fakeBackend) Images(_ context.Context, q search.Query) ([]search.Hit, error) {
	return b.answer(search.SurfaceImages, q)
}

func (b *fakeBackend) Videos(_ context.Context, q search.Query) ([]search.Hit, error) {
	return b.answer(search.SurfaceVideos, q)
}

func (b *fakeBackend) Suggestions(_ context.Context, text, _ string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if err := b.errs["suggest"]; err != nil {
		return nil, err
	}
	return append([]string(nil), b.suggestions...), nil
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *fakeBackend) lastQuery() search.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[len(b.queries)-1]
}

type pageFetcher struct {
	fail map[string]bool
}

func (f pageFetcher) Fetch(_ context.Context, req search.FetchRequest) (search.FetchResponse, error) {
	if f.fail[req.URL] {
		return search.FetchResponse{}, fmt.Errorf("%w: connection refused", search.ErrFetchFailed)
	}
	body := fmt.Sprintf(`<html><head><title>Page %[1]s</title><meta name="description" content="About %[1]s"></head>
<body><article><p>Body text for %[1]s that is long enough to satisfy the article extraction heuristic without trouble.</p></article></body></html>`, req.URL)
	return search.FetchResponse{
		URL:        req.URL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html"}},
		Body:       []byte(body),
	}, nil
}

type fakeTranscripts struct {
	gotID    string
	gotLangs []string
	err      error
}

func (f *fakeTranscripts) Transcript(_ context.Context, videoID string, languages []string) (search.Transcript, error) {
	f.gotID, f.gotLangs = videoID, languages
	if f.err != nil {
		return search.Transcript{}, f.err
	}
	return search.Transcript{VideoID: videoID, Language: languages[0], Segments: []search.Segment{{Text: "hi"}}, Text: "hi"}, nil
}

func webHits(n int) []search.Hit {
	hits := make([]search.Hit, n)
	for i := range hits {
		hits[i] = search.Hit{Title: fmt.Sprintf("hit %d", i), URL: fmt.Sprintf("https://example.com/%d", i)}
	}
	return hits
}

type fixture struct {
	svc     *Service
	backend *fakeBackend
	clock   *fakeClock
	fetch   pageFetcher
	tr      *fakeTranscripts
}

func newFixture(t *testing.T, admitter Admitter) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store, err := cache.New[any](cache.Config{TTL: 30 * time.Minute, MaxEntries: 100, Shards: 4}, clock)
	require.NoError(t, err)
	backend := newFakeBackend()
	fetch := pageFetcher{fail: map[string]bool{}}
	tr := &fakeTranscripts{}
	svc, err := New(Deps{
		Backend:     backend,
		Pool:        enrich.New(fetch, nil, nil, enrich.Config{Concurrency: 3, Timeout: time.Second}, nil),
		Transcripts: tr,
		Cache:       store,
		Admitter:    admitter,
		Clock:       clock,
	}, DefaultConfig())
	require.NoError(t, err)
	return &fixture{svc: svc, backend: backend, clock: clock, fetch: fetch, tr: tr}
}

func resultURLs(results []search.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}

func TestSearchPaginatesDeduplicatedCandidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	all := webHits(25)
	f.backend.hits[search.SurfaceWeb] = all
	ctx := context.Background()

	resp, err := f.svc.Search(ctx, SearchRequest{Query: "go", Limit: 10, Page: 2})
	require.NoError(t, err)
	require.Equal(t, 20, f.backend.lastQuery().MaxResults)
	require.Equal(t, 10, resp.Count)
	require.Equal(t, all[10].URL, resp.Results[0].URL)
	require.Equal(t, all[19].URL, resp.Results[9].URL)
	require.Equal(t, "fake", resp.Source)

	resp, err = f.svc.Search(ctx, SearchRequest{Query: "go", Limit: 10, Page: 3})
	require.NoError(t, err)
	require.Equal(t, 30, f.backend.lastQuery().MaxResults)
	require.Len(t, resp.Results, 5)
	require.Equal(t, all[20].URL, resp.Results[0].URL)
	require.Equal(t, all[24].URL, resp.Results[4].URL)

	resp, err = f.svc.Search(ctx, SearchRequest{Query: "go", Limit: 10, Page: 4})
	require.NoError(t, err)
	require.Empty(t, resp.Results)
	require.NotNil(t, resp.Results)
	require.Equal(t, 4, resp.Page)
}

func TestSearchDedupesBeforePaginating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = []search.Hit{
		{URL: "https://a.example/x/"},
		{URL: "https://A.example/x#top"},
		{URL: ""},
		{URL: "https://b.example/y?utm=1"},
		{URL: "https://b.example/y"},
		{URL: "https://c.example/z"},
	}

	resp, err := f.svc.Search(context.Background(), SearchRequest{Query: "go"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/x/", "https://b.example/y?utm=1", "https://c.example/z"}, resultURLs(resp.Results))
}

func TestSearchAppendsSiteOperators(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(1)

	_, err := f.svc.Search(context.Background(), SearchRequest{
		Query:       "  golang  ",
		Region:      "us-en",
		SafeSearch:  "STRICT",
		Site:        "go.dev",
		ExcludeSite: "reddit.com",
	})
	require.NoError(t, err)
	q := f.backend.lastQuery()
	require.Equal(t, "golang site:go.dev -site:reddit.com", q.Text)
	require.Equal(t, "us-en", q.Region)
	require.Equal(t, search.SafeSearchStrict, q.SafeSearch)
}

func TestSearchServesCachedCopy(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(3)
	ctx := context.Background()

	first, err := f.svc.Search(ctx, SearchRequest{Query: "go"})
	require.NoError(t, err)
	require.False(t, first.Cached)

	f.clock.Advance(2 * time.Second)
	second, err := f.svc.Search(ctx, SearchRequest{Query: "go", Limit: 10, Page: 1, SafeSearch: "moderate", Enrich: "none"})
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Results, second.Results)
	require.Equal(t, 1, f.backend.callCount())

	f.clock.Advance(31 * time.Minute)
	third, err := f.svc.Search(ctx, SearchRequest{Query: "go"})
	require.NoError(t, err)
	require.False(t, third.Cached)
	require.Equal(t, 2, f.backend.callCount())
}

func TestSearchBackendFailureIsNotCached(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.errs[search.SurfaceWeb] = errors.New("upstream 500")
	ctx := context.Background()

	_, err := f.svc.Search(ctx, SearchRequest{Query: "go"})
	require.ErrorIs(t, err, search.ErrBackendUnavailable)

	delete(f.backend.errs, search.SurfaceWeb)
	f.backend.hits[search.SurfaceWeb] = webHits(2)
	resp, err := f.svc.Search(ctx, SearchRequest{Query: "go"})
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Equal(t, 2, f.backend.callCount())
}

func TestSearchEmptyBackendIsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.svc.Search(context.Background(), SearchRequest{Query: "go"})
	require.ErrorIs(t, err, search.ErrBackendUnavailable)
}

func TestSearchRejectsInvalidInputBeforeBackend(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	cases := []SearchRequest{
		{Query: "   "},
		{Query: "go", Limit: 51},
		{Query: "go", Limit: -1},
		{Query: "go", Page: -2},
		{Query: "go", Page: 21},
		{Query: "go", SafeSearch: "maybe"},
		{Query: "go", Enrich: "everything"},
	}
	for _, req := range cases {
		_, err := f.svc.Search(ctx, req)
		require.ErrorIs(t, err, search.ErrInvalidInput, "%+v", req)
	}
	require.Zero(t, f.backend.callCount())
}

func TestAdmitPerIdentity(t *testing.T) {
	t.Parallel()

	limiter, err := ratelimit.New(ratelimit.Config{MaxRequests: 2, Window: time.Minute, Shards: 1}, nil)
	require.NoError(t, err)
	f := newFixture(t, limiter)

	require.NoError(t, f.svc.Admit("203.0.113.9"))
	require.NoError(t, f.svc.Admit("203.0.113.9"))
	err = f.svc.Admit("203.0.113.9")
	require.ErrorIs(t, err, search.ErrAdmissionDenied)
	var admission *search.AdmissionError
	require.ErrorAs(t, err, &admission)
	require.Positive(t, admission.RetryAfter)

	require.NoError(t, f.svc.Admit("198.51.100.1"))
	require.NoError(t, f.svc.Admit(""), "callers without identity skip admission")
}

func TestAdmitWithoutAdmitter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for range 100 {
		require.NoError(t, f.svc.Admit("203.0.113.9"))
	}
}

func TestSearchPartialEnrichment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(5)
	f.fetch.fail["https://example.com/3"] = true

	resp, err := f.svc.Search(context.Background(), SearchRequest{Query: "go", Limit: 5, Enrich: "content"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 5)
	for i, r := range resp.Results {
		require.Equal(t, fmt.Sprintf("https://example.com/%d", i), r.URL)
		require.NotNil(t, r.Enrichment)
		if i == 3 {
			require.True(t, r.Enrichment.Failed())
			require.Contains(t, r.Enrichment.Error, "fetch failed")
			continue
		}
		require.False(t, r.Enrichment.Failed())
		require.Contains(t, r.Enrichment.Text, r.URL)
	}
	require.GreaterOrEqual(t, resp.TookMs, int64(0))

	again, err := f.svc.Search(context.Background(), SearchRequest{Query: "go", Limit: 5, Enrich: "content"})
	require.NoError(t, err)
	require.True(t, again.Cached, "partial enrichment is cacheable")
}

func TestSearchEnrichesOnlyThePage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(12)

	resp, err := f.svc.Search(context.Background(), SearchRequest{Query: "go", Limit: 5, Page: 3, Enrich: "meta"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		require.Equal(t, "Page "+r.URL, r.Enrichment.Title)
		require.Equal(t, "About "+r.URL, r.Enrichment.Description)
	}
}

func TestNewsFreshness(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceNews] = webHits(2)
	ctx := context.Background()

	_, err := f.svc.News(ctx, NewsRequest{Query: "go", Freshness: "2w"})
	require.NoError(t, err)
	require.Equal(t, 14, f.backend.lastQuery().TimeLimit)

	_, err = f.svc.News(ctx, NewsRequest{Query: "go", Freshness: "soon"})
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestImagesDedupeOnImageURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceImages] = []search.Hit{
		{Title: "a", Image: "https://img.example/1.jpg?w=100", URL: "https://page.example/"},
		{Title: "b", Image: "https://img.example/1.jpg?w=200", URL: "https://page.example/"},
		{Title: "c", Image: "https://img.example/1.jpg?w=100"},
		{Title: "d"},
	}

	resp, err := f.svc.Images(context.Background(), ImagesRequest{Query: "cats", Size: "Large", Color: "Red"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "a", resp.Results[0].Title)
	require.Equal(t, "b", resp.Results[1].Title)
	q := f.backend.lastQuery()
	require.Equal(t, "Large", q.Size)
	require.Equal(t, "Red", q.Color)
}

func TestVideos(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceVideos] = []search.Hit{{URL: "https://v.example/1"}, {URL: "https://v.example/1/"}}

	resp, err := f.svc.Videos(context.Background(), VideosRequest{Query: "talks"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
}

func TestSuggestDedupesAndCaps(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	for i := range 30 {
		f.backend.suggestions = append(f.backend.suggestions, fmt.Sprintf("go %d", i))
	}
	f.backend.suggestions = append([]string{"go 0"}, f.backend.suggestions...)

	resp, err := f.svc.Suggest(context.Background(), "go", "")
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 20)
	require.Equal(t, "go 1", resp.Suggestions[1])

	again, err := f.svc.Suggest(context.Background(), "go", "")
	require.NoError(t, err)
	require.True(t, again.Cached)
	require.Equal(t, 1, f.backend.callCount())
}

func TestSuggestBackendFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.errs["suggest"] = errors.New("boom")
	_, err := f.svc.Suggest(context.Background(), "go", "")
	require.ErrorIs(t, err, search.ErrBackendUnavailable)
}

func TestMixRunsAllSurfaces(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(8)
	f.backend.hits[search.SurfaceNews] = webHits(2)

	resp, err := f.svc.Mix(context.Background(), "go", 0)
	require.NoError(t, err)
	require.Len(t, resp.Web, 5)
	require.Len(t, resp.News, 2)
	require.Empty(t, resp.Images)
	require.Equal(t, 3, f.backend.callCount())

	_, err = f.svc.Mix(context.Background(), "go", 21)
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestMixFailsWhenAnySurfaceFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.backend.hits[search.SurfaceWeb] = webHits(3)
	f.backend.errs[search.SurfaceImages] = errors.New("vqd missing")

	_, err := f.svc.Mix(context.Background(), "go", 3)
	require.ErrorIs(t, err, search.ErrBackendUnavailable)
}

func TestExtract(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Extract(ctx, "https://news.example/story", "")
	require.NoError(t, err)
	require.Equal(t, "content", resp.Mode)
	require.Equal(t, "Page https://news.example/story", resp.Title)
	require.NotEmpty(t, resp.Text)
	require.NotEmpty(t, resp.Strategy)

	cached, err := f.svc.Extract(ctx, "https://news.example/story", "content")
	require.NoError(t, err)
	require.True(t, cached.Cached)

	f.fetch.fail["https://down.example/"] = true
	_, err = f.svc.Extract(ctx, "https://down.example/", "meta")
	require.ErrorIs(t, err, search.ErrFetchFailed)

	_, err = f.svc.Extract(ctx, "", "")
	require.ErrorIs(t, err, search.ErrInvalidInput)
	_, err = f.svc.Extract(ctx, "https://a.example/", "none")
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestExtractBatchIsIndexAligned(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.fetch.fail["https://b.example/"] = true
	in := []string{"https://a.example/", "https://b.example/", "ftp://c.example/", "https://d.example/"}

	resp, err := f.svc.ExtractBatch(context.Background(), in, "meta")
	require.NoError(t, err)
	require.Equal(t, 4, resp.Count)
	require.Equal(t, 2, resp.Succeeded)
	require.Equal(t, 2, resp.Failed)
	for i, r := range resp.Results {
		require.Equal(t, in[i], r.URL)
	}
	require.Empty(t, resp.Results[0].Error)
	require.NotEmpty(t, resp.Results[1].Error)
	require.NotEmpty(t, resp.Results[2].Error)

	_, err = f.svc.ExtractBatch(context.Background(), nil, "")
	require.ErrorIs(t, err, search.ErrInvalidInput)
	_, err = f.svc.ExtractBatch(context.Background(), make([]string, 21), "")
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestExtractBatchSignatureKeepsListsApart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	joined, err := f.svc.ExtractBatch(ctx, []string{"https://a.example/\nhttps://b.example/"}, "meta")
	require.NoError(t, err)
	require.Equal(t, 1, joined.Count)

	split, err := f.svc.ExtractBatch(ctx, []string{"https://a.example/", "https://b.example/"}, "meta")
	require.NoError(t, err)
	require.False(t, split.Cached)
	require.Equal(t, 2, split.Count)
	require.Len(t, split.Results, 2)

	require.NotEqual(t, batchKey([]string{"a,b"}), batchKey([]string{"a", "b"}))
	require.NotEqual(t, batchKey([]string{"a\nb"}), batchKey([]string{"a", "b"}))
	require.Equal(t, batchKey([]string{"a", "b"}), batchKey([]string{"a", "b"}))
}

func TestTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Transcript(ctx, "https://youtu.be/dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	require.Equal(t, "dQw4w9WgXcQ", f.tr.gotID)
	require.Equal(t, []string{"en"}, f.tr.gotLangs)
	require.Equal(t, "hi", resp.Text)

	_, err = f.svc.Transcript(ctx, "dQw4w9WgXcQ", []string{" DE ", ""})
	require.NoError(t, err)
	require.Equal(t, []string{"de"}, f.tr.gotLangs)

	_, err = f.svc.Transcript(ctx, "not a video", nil)
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestTranscriptErrorsPassThrough(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.tr.err = &search.TranscriptError{Kind: search.TranscriptDisabled, VideoID: "dQw4w9WgXcQ"}

	_, err := f.svc.Transcript(context.Background(), "dQw4w9WgXcQ", nil)
	var terr *search.TranscriptError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, search.TranscriptDisabled, terr.Kind)
}

func TestNewRequiresBackend(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{})
	require.Error(t, err)
}

func TestMissingCollaboratorsAreUnsupported(t *testing.T) {
	t.Parallel()

	svc, err := New(Deps{Backend: newFakeBackend()}, Config{})
	require.NoError(t, err)
	_, err = svc.Extract(context.Background(), "https://a.example/", "")
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = svc.Transcript(context.Background(), "dQw4w9WgXcQ", nil)
	require.ErrorIs(t, err, ErrUnsupported)
}
