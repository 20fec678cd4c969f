// Package youtube retrieves caption transcripts from YouTube watch pages.
//
// The watch page embeds a caption track list; the chosen track's timedtext
// URL returns XML segments. Failures are reported as *search.TranscriptError
// with kind disabled (captions turned off), not_found (no track in the
// requested languages) or unavailable (video missing, private, or blocked).
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/turboduck/internal/search"
)

const defaultBaseURL = "https://www.youtube.com"

var (
	videoIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playabilityPattern = regexp.MustCompile(`"playabilityStatus":\s*\{\s*"status":\s*"([A-Z_]+)"`)
)

// Config tunes the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements search.Transcripts.
type Client struct {
	cfg     Config
	fetcher search.Fetcher
	logger  *zap.Logger
}

// New builds a Client.
func New(cfg Config, fetcher search.Fetcher, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, fetcher: fetcher, logger: logger}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

func (t captionTrack) generated() bool { return t.Kind == "asr" }

type captions struct {
	Renderer struct {
		CaptionTracks []captionTrack `json:"captionTracks"`
	} `json:"playerCaptionsTracklistRenderer"`
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript implements search.Transcripts. languages are tried in order;
// manual tracks beat generated ones within a language.
func (c *Client) Transcript(ctx context.Context, videoID string, languages []string) (search.Transcript, error) {
	if !videoIDPattern.MatchString(videoID) {
		return search.Transcript{}, search.InvalidInput("video", fmt.Sprintf("%q is not a video id", videoID))
	}

	page, err := c.fetch(ctx, c.cfg.BaseURL+"/watch?"+url.Values{"v": {videoID}}.Encode())
	if err != nil {
		return search.Transcript{}, c.unavailable(videoID, err)
	}
	tracks, err := captionTracks(videoID, page)
	if err != nil {
		return search.Transcript{}, err
	}
	track, ok := pickTrack(tracks, languages)
	if !ok {
		return search.Transcript{}, &search.TranscriptError{
			Kind:    search.TranscriptNotFound,
			VideoID: videoID,
			Detail:  fmt.Sprintf("requested %s, available %s", strings.Join(languages, ","), strings.Join(trackLanguages(tracks), ",")),
		}
	}

	raw, err := c.fetch(ctx, strings.ReplaceAll(html.UnescapeString(track.BaseURL), "&fmt=srv3", ""))
	if err != nil {
		return search.Transcript{}, c.unavailable(videoID, err)
	}
	segments, err := parseTimedText(raw)
	if err != nil {
		return search.Transcript{}, &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: err.Error()}
	}

	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return search.Transcript{
		VideoID:   videoID,
		Language:  track.LanguageCode,
		Generated: track.generated(),
		Segments:  segments,
		Text:      strings.Join(texts, " "),
	}, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	resp, err := c.fetcher.Fetch(ctx, search.FetchRequest{
		URL:     target,
		Timeout: c.cfg.Timeout,
		Headers: http.Header{"Accept-Language": {"en-US,en;q=0.9"}},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) unavailable(videoID string, err error) error {
	c.logger.Debug("transcript fetch failed", zap.String("video", videoID), zap.Error(err))
	return &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: err.Error()}
}

// captionTracks pulls the track list out of the watch page's player JSON.
func captionTracks(videoID string, page []byte) ([]captionTrack, error) {
	start := bytes.Index(page, []byte(`"captions":`))
	if start < 0 {
		return nil, missingCaptions(videoID, page)
	}
	rest := page[start+len(`"captions":`):]
	end := bytes.Index(rest, []byte(`,"videoDetails`))
	if end < 0 {
		return nil, &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: "malformed player response"}
	}

	var caps captions
	if err := json.Unmarshal(bytes.ReplaceAll(rest[:end], []byte("\n"), nil), &caps); err != nil {
		return nil, &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: "decode captions: " + err.Error()}
	}
	if len(caps.Renderer.CaptionTracks) == 0 {
		return nil, &search.TranscriptError{Kind: search.TranscriptDisabled, VideoID: videoID}
	}
	return caps.Renderer.CaptionTracks, nil
}

func missingCaptions(videoID string, page []byte) error {
	if bytes.Contains(page, []byte(`class="g-recaptcha"`)) {
		return &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: "upstream requires a captcha"}
	}
	if m := playabilityPattern.FindSubmatch(page); m != nil && string(m[1]) != "OK" {
		return &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: "playability " + strings.ToLower(string(m[1]))}
	}
	if !bytes.Contains(page, []byte(`"playabilityStatus":`)) {
		return &search.TranscriptError{Kind: search.TranscriptUnavailable, VideoID: videoID, Detail: "video not found"}
	}
	return &search.TranscriptError{Kind: search.TranscriptDisabled, VideoID: videoID}
}

func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	if len(tracks) == 0 {
		return captionTrack{}, false
	}
	if len(languages) == 0 {
		for _, t := range tracks {
			if !t.generated() {
				return t, true
			}
		}
		return tracks[0], true
	}
	for _, lang := range languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		var generated *captionTrack
		for i, t := range tracks {
			if !strings.EqualFold(t.LanguageCode, lang) {
				continue
			}
			if !t.generated() {
				return t, true
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

func trackLanguages(tracks []captionTrack) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		code := t.LanguageCode
		if t.generated() {
			code += "(auto)"
		}
		out = append(out, code)
	}
	return out
}

func parseTimedText(raw []byte) ([]search.Segment, error) {
	var doc timedText
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode timedtext: %w", err)
	}
	segments := make([]search.Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, search.Segment{Text: text, Start: start, Duration: dur})
	}
	if len(segments) == 0 {
		return nil, errors.New("timedtext contained no segments")
	}
	return segments, nil
}

// ParseVideoID accepts a bare id or a watch, short, embed or youtu.be URL.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", search.InvalidInput("video", fmt.Sprintf("%q is not a video id or url", raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" || host == "music.youtube.com" || host == "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "embed" || parts[0] == "shorts" || parts[0] == "live" || parts[0] == "v") {
			id = parts[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", search.InvalidInput("video", fmt.Sprintf("%q is not a video id or url", raw))
	}
	return id, nil
}
