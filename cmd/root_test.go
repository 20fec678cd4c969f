package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/turboduck/internal/api"
	"github.com/JakeFAU/turboduck/internal/config"
	"github.com/JakeFAU/turboduck/internal/gateway"
	"github.com/JakeFAU/turboduck/internal/search"
)

type recordingGateway struct {
	mu     sync.Mutex
	calls  []string
	search gateway.SearchRequest
	news   gateway.NewsRequest
	urls   []string
	langs  []string
	err    error
}

func (g *recordingGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
}

func (g *recordingGateway) Admit(string) error {
	g.record("admit")
	return nil
}

func (g *recordingGateway) Search(_ context.Context, req gateway.SearchRequest) (*search.Response, error) {
	g.record("search")
	g.search = req
	if g.err != nil {
		return nil, g.err
	}
	return &search.Response{Query: req.Query, Page: 1, PerPage: 10, Results: []search.Result{}, Source: "duckduckgo"}, nil
}

func (g *recordingGateway) News(_ context.Context, req gateway.NewsRequest) (*search.Response, error) {
	g.record("news")
	g.news = req
	return &search.Response{Query: req.Query, Results: []search.Result{}}, nil
}

func (g *recordingGateway) Images(_ context.Context, req gateway.ImagesRequest) (*search.Response, error) {
	g.record("images")
	return &search.Response{Query: req.Query, Results: []search.Result{}}, nil
}

func (g *recordingGateway) Videos(_ context.Context, req gateway.VideosRequest) (*search.Response, error) {
	g.record("videos")
	return &search.Response{Query: req.Query, Results: []search.Result{}}, nil
}

func (g *recordingGateway) Suggest(_ context.Context, query, _ string) (*search.Suggestions, error) {
	g.record("suggest")
	return &search.Suggestions{Query: query, Suggestions: []string{query + " tips"}}, nil
}

func (g *recordingGateway) Mix(_ context.Context, query string, _ int) (*search.Mix, error) {
	g.record("mix")
	return &search.Mix{Query: query}, nil
}

func (g *recordingGateway) Extract(_ context.Context, rawURL, mode string) (*search.Extraction, error) {
	g.record("extract")
	g.urls = []string{rawURL}
	return &search.Extraction{URL: rawURL, Mode: mode, Title: "Example"}, nil
}

func (g *recordingGateway) ExtractBatch(_ context.Context, urls []string, mode string) (*search.BatchExtraction, error) {
	g.record("batch")
	g.urls = urls
	return &search.BatchExtraction{Mode: mode, Count: len(urls)}, nil
}

func (g *recordingGateway) Transcript(_ context.Context, video string, languages []string) (*search.Transcript, error) {
	g.record("transcript")
	g.langs = languages
	return &search.Transcript{VideoID: video, Language: "en"}, nil
}

type fakeApp struct {
	gw     *recordingGateway
	ran    bool
	closed int
}

func (a *fakeApp) Gateway() api.Gateway { return a.gw }

func (a *fakeApp) Run(context.Context) error {
	a.ran = true
	return nil
}

func (a *fakeApp) Close(context.Context) error {
	a.closed++
	return nil
}

func run(t *testing.T, app *fakeApp, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(func(context.Context, *config.Config) (App, error) { return app, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommandPrintsJSON(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}

	out, err := run(t, app, "search", "golang", "generics", "--site", "go.dev", "--limit", "5", "--enrich", "meta")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "golang generics", resp.Query)
	require.Equal(t, "go.dev", app.gw.search.Site)
	require.Equal(t, 5, app.gw.search.Limit)
	require.Equal(t, "meta", app.gw.search.Enrich)
	require.Equal(t, 1, app.closed)
}

func TestSearchCommandKinds(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"news", "images", "videos", "suggest", "mix"} {
		app := &fakeApp{gw: &recordingGateway{}}
		_, err := run(t, app, "search", "q", "--kind", kind)
		require.NoError(t, err, kind)
		require.Equal(t, []string{kind}, app.gw.calls)
	}

	app := &fakeApp{gw: &recordingGateway{}}
	_, err := run(t, app, "search", "q", "--kind", "maps")
	require.ErrorContains(t, err, "unknown --kind")
	require.Empty(t, app.gw.calls)
}

func TestSearchCommandNewsFreshness(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}
	_, err := run(t, app, "search", "rates", "--kind", "news", "--freshness", "7d")
	require.NoError(t, err)
	require.Equal(t, "7d", app.gw.news.Freshness)
}

func TestSearchCommandPropagatesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("backend down")
	app := &fakeApp{gw: &recordingGateway{err: boom}}
	_, err := run(t, app, "search", "q")
	require.ErrorIs(t, err, boom)
}

func TestExtractCommandSingleAndBatch(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}
	out, err := run(t, app, "extract", "https://example.com/a", "--mode", "meta")
	require.NoError(t, err)
	require.Contains(t, out, `"title": "Example"`)
	require.Equal(t, []string{"extract"}, app.gw.calls)

	app = &fakeApp{gw: &recordingGateway{}}
	_, err = run(t, app, "extract", "https://example.com/a", "https://example.com/b")
	require.NoError(t, err)
	require.Equal(t, []string{"batch"}, app.gw.calls)
	require.Len(t, app.gw.urls, 2)
}

func TestTranscriptCommandLanguages(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}
	out, err := run(t, app, "transcript", "dQw4w9WgXcQ", "--lang", "de,en")
	require.NoError(t, err)
	require.Contains(t, out, `"video_id": "dQw4w9WgXcQ"`)
	require.Equal(t, []string{"de", "en"}, app.gw.langs)
}

func TestServeCommandRunsApp(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}
	_, err := run(t, app, "serve")
	require.NoError(t, err)
	require.True(t, app.ran)
	require.Equal(t, 1, app.closed)
}

func TestMissingArgumentsFail(t *testing.T) {
	t.Parallel()
	app := &fakeApp{gw: &recordingGateway{}}
	_, err := run(t, app, "search")
	require.Error(t, err)
	_, err = run(t, app, "transcript")
	require.Error(t, err)
}
