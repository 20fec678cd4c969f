package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/turboduck/internal/fetcher/colly"
	"github.com/JakeFAU/turboduck/internal/search"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="1.25">Hello &amp;amp; welcome</text>
<text start="1.75" dur="2">to the pond</text>
<text start="4" dur="1"></text>
</transcript>`

func watchPage(baseURL string) string {
	return fmt.Sprintf(`<html><script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[
{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr","name":{"simpleText":"English (auto-generated)"},"languageCode":"en","kind":"asr"},
{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=de","name":{"simpleText":"German"},"languageCode":"de"},
{"baseUrl":"%[1]s/api/timedtext?v=dQw4w9WgXcQ&lang=en-manual","name":{"simpleText":"English"},"languageCode":"en"}
]}},"videoDetails":{"videoId":"dQw4w9WgXcQ"}};</script></html>`, baseURL)
}

func newServer(t *testing.T, watch func(base string) string) (*httptest.Server, *Client) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			_, _ = w.Write([]byte(watch(srv.URL)))
		case "/api/timedtext":
			w.Header().Set("X-Lang", r.URL.Query().Get("lang"))
			_, _ = w.Write([]byte(timedTextXML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	return srv, New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, fetcher, nil)
}

func TestTranscriptPrefersManualTrack(t *testing.T) {
	t.Parallel()

	_, c := newServer(t, watchPage)
	tr, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"en"})
	require.NoError(t, err)
	require.Equal(t, "en", tr.Language)
	require.False(t, tr.Generated)
	require.Len(t, tr.Segments, 2)
	require.Equal(t, search.Segment{Text: "Hello & welcome", Start: 0.5, Duration: 1.25}, tr.Segments[0])
	require.Equal(t, "Hello & welcome to the pond", tr.Text)
}

func TestTranscriptLanguageOrder(t *testing.T) {
	t.Parallel()

	_, c := newServer(t, watchPage)
	tr, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"fr", "de", "en"})
	require.NoError(t, err)
	require.Equal(t, "de", tr.Language)
}

func TestTranscriptNotFound(t *testing.T) {
	t.Parallel()

	_, c := newServer(t, watchPage)
	_, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"ja"})
	var terr *search.TranscriptError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, search.TranscriptNotFound, terr.Kind)
	require.Contains(t, terr.Detail, "en(auto)")
}

func TestTranscriptDisabled(t *testing.T) {
	t.Parallel()

	_, c := newServer(t, func(string) string {
		return `<html><script>{"playabilityStatus":{"status":"OK"},"videoDetails":{}}</script></html>`
	})
	_, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", []string{"en"})
	var terr *search.TranscriptError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, search.TranscriptDisabled, terr.Kind)
}

func TestTranscriptUnavailableVideo(t *testing.T) {
	t.Parallel()

	_, c := newServer(t, func(string) string {
		return `<html><script>{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}</script></html>`
	})
	_, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", nil)
	var terr *search.TranscriptError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, search.TranscriptUnavailable, terr.Kind)
	require.Equal(t, "playability error", terr.Detail)
}

func TestTranscriptUpstreamDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL}, collyfetcher.New(collyfetcher.Config{Timeout: time.Second}), nil)

	_, err := c.Transcript(context.Background(), "dQw4w9WgXcQ", nil)
	var terr *search.TranscriptError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, search.TranscriptUnavailable, terr.Kind)
}

func TestTranscriptRejectsBadID(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil).Transcript(context.Background(), "short", nil)
	require.ErrorIs(t, err, search.ErrInvalidInput)
}

func TestPickTrackWithoutLanguages(t *testing.T) {
	t.Parallel()

	tracks := []captionTrack{{LanguageCode: "en", Kind: "asr"}, {LanguageCode: "es"}}
	got, ok := pickTrack(tracks, nil)
	require.True(t, ok)
	require.Equal(t, "es", got.LanguageCode)

	_, ok = pickTrack(nil, nil)
	require.False(t, ok)
}

func TestParseVideoID(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://youtube.com/shorts/dQw4w9WgXcQ",
	} {
		id, err := ParseVideoID(in)
		require.NoError(t, err, in)
		require.Equal(t, "dQw4w9WgXcQ", id, in)
	}

	for _, in := range []string{"", "abc", "https://vimeo.com/12345678901", "https://www.youtube.com/channel/xyz"} {
		_, err := ParseVideoID(in)
		require.ErrorIs(t, err, search.ErrInvalidInput, in)
	}
}
