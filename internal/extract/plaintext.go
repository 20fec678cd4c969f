package extract

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText strips markup and concatenates visible text.
type PlainText struct{}

// NewPlainText returns a PlainText strategy.
func NewPlainText() *PlainText { return &PlainText{} }

// Name implements Strategy.
func (PlainText) Name() string { return "plaintext" }

// Attempt implements Strategy.
func (PlainText) Attempt(doc string, _ *url.URL) (Result, error) {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		b       strings.Builder
		skip    int
		inTitle bool
		title   string
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return Result{}, fmt.Errorf("tokenize html: %w", err)
			}
			return Result{Title: title, Text: cleanWhitespace(b.String())}, nil
		case html.StartTagToken:
			tag, _ := z.TagName()
			switch atom.Lookup(tag) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				skip++
			case atom.Title:
				inTitle = true
			case atom.P, atom.Div, atom.Br, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.Tr, atom.Section, atom.Article:
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			tag, _ := z.TagName()
			switch atom.Lookup(tag) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = false
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if inTitle {
				if title == "" {
					title = strings.TrimSpace(text)
				}
				continue
			}
			b.WriteString(text)
			b.WriteByte(' ')
		}
	}
}
