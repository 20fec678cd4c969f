package extract

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/turboduck/internal/search"
)

type stubStrategy struct {
	name  string
	res   Result
	err   error
	panic bool
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(string, *url.URL) (Result, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	return s.res, s.err
}

func TestChainCommitsToFirstSuccess(t *testing.T) {
	t.Parallel()

	first := &stubStrategy{name: "first", err: errors.New("nope")}
	second := &stubStrategy{name: "second", res: Result{Title: "T", Text: "body"}}
	third := &stubStrategy{name: "third", res: Result{Text: "never"}}

	res, err := NewChain(nil, first, second, third).Extract("<html></html>", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "second", res.Strategy)
	require.Equal(t, "body", res.Text)
	require.Equal(t, 1, first.calls)
	require.Zero(t, third.calls)
}

func TestChainSkipsPanicsAndBlankText(t *testing.T) {
	t.Parallel()

	panicky := &stubStrategy{name: "panicky", panic: true}
	blank := &stubStrategy{name: "blank", res: Result{Text: "  \n "}}
	good := &stubStrategy{name: "good", res: Result{Text: "content"}}

	res, err := NewChain(nil, panicky, blank, good).Extract("", "")
	require.NoError(t, err)
	require.Equal(t, "good", res.Strategy)
}

func TestChainExhaustionWrapsExtractionFailed(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil,
		&stubStrategy{name: "a", err: errors.New("bad a")},
		&stubStrategy{name: "b", panic: true},
	)
	_, err := chain.Extract("<p></p>", "https://example.com")
	require.ErrorIs(t, err, search.ErrExtractionFailed)
	require.Contains(t, err.Error(), "bad a")
	require.Contains(t, err.Error(), "panicked")

	_, err = NewChain(nil).Extract("", "")
	require.ErrorIs(t, err, search.ErrExtractionFailed)
}

func TestChainTitleFallsBackToTitleElement(t *testing.T) {
	t.Parallel()

	page := "<html><head><title> Page Title </title></head><body>x</body></html>"
	chain := NewChain(nil, &stubStrategy{name: "untitled", res: Result{Text: "text"}})
	res, err := chain.Extract(page, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "Page Title", res.Title)
}

func TestDefaultChainOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"article", "readability", "plaintext"}, DefaultChain(nil).Strategies())
}

const articlePage = `<!doctype html>
<html lang="en">
<head>
  <title>Fallback Title</title>
  <meta property="og:title" content="Ducks Learn To Fly">
  <meta name="description" content="A story about ducks.">
  <meta name="author" content="Jane Reporter">
  <meta property="og:site_name" content="Pond News">
</head>
<body>
  <nav>Home | About | Contact</nav>
  <article>
    <h1>Ducks Learn To Fly</h1>
    <p>Early on Tuesday morning, a flock of ducklings took to the sky above the pond for the first time.</p>
    <p>Observers said the formation was ragged but the enthusiasm was undeniable.</p>
  </article>
  <footer>Copyright Pond News</footer>
  <script>var tracking = "should not appear";</script>
</body>
</html>`

func TestDefaultChainArticlePage(t *testing.T) {
	t.Parallel()

	res, err := DefaultChain(nil).Extract(articlePage, "https://news.example.com/ducks")
	require.NoError(t, err)
	require.Equal(t, "article", res.Strategy)
	require.Equal(t, "Ducks Learn To Fly", res.Title)
	require.Equal(t, "A story about ducks.", res.Description)
	require.Contains(t, res.Text, "flock of ducklings")
	require.NotContains(t, res.Text, "Home | About")
	require.NotContains(t, res.Text, "tracking")
	require.Equal(t, "Jane Reporter", res.Metadata["author"])
	require.Equal(t, "Pond News", res.Metadata["site_name"])
	require.Equal(t, "en", res.Metadata["language"])
}

func TestArticleUsesJSONLDBody(t *testing.T) {
	t.Parallel()

	page := `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@graph":[{"@type":"WebSite","name":"x"},
{"@type":"NewsArticle","headline":"LD Headline","author":[{"name":"A One"},{"name":"B Two"}],
"datePublished":"2024-05-01","articleBody":"This body comes straight from structured data and is long enough to be accepted as article text."}]}
</script></head><body><div>tiny</div></body></html>`

	res, err := NewArticle().Attempt(page, nil)
	require.NoError(t, err)
	require.Equal(t, "LD Headline", res.Title)
	require.Equal(t, "A One, B Two", res.Metadata["author"])
	require.Equal(t, "2024-05-01", res.Metadata["published"])
	require.True(t, strings.HasPrefix(res.Text, "This body comes straight"))
}

func TestArticleRejectsPagesWithoutContainers(t *testing.T) {
	t.Parallel()

	_, err := NewArticle().Attempt("<html><body><div>just a div of text</div></body></html>", nil)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestPlainTextStripsScriptsAndStyles(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>T</title><style>body{color:red}</style></head>
<body><div>Hello</div><script>alert("x")</script><noscript>enable js</noscript><p>World</p></body></html>`

	res, err := NewPlainText().Attempt(page, nil)
	require.NoError(t, err)
	require.Equal(t, "T", res.Title)
	require.Equal(t, "Hello\nWorld", res.Text)
}

func TestDefaultChainFallsThroughToPlainText(t *testing.T) {
	t.Parallel()

	res, err := DefaultChain(nil).Extract("<div>hi</div>", "https://example.com")
	require.NoError(t, err)
	require.NotEqual(t, "article", res.Strategy)
	require.Contains(t, res.Text, "hi")
}

func TestDefaultChainFailsOnEmptyDocument(t *testing.T) {
	t.Parallel()

	_, err := DefaultChain(nil).Extract("<html><head><script>x()</script></head><body></body></html>", "https://example.com")
	require.ErrorIs(t, err, search.ErrExtractionFailed)
}
