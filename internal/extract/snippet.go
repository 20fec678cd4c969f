package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Snippet reads only the head-level title and description of a page,
// preferring OpenGraph tags. It never fails; a page with no metadata yields
// an empty Result.
func Snippet(doc string) Result {
	res := Result{Strategy: "snippet", Metadata: map[string]string{}}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return res
	}

	var pageTitle, metaDescription string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				property := getAttr(n, "property")
				name := getAttr(n, "name")
				content := strings.TrimSpace(getAttr(n, "content"))
				switch property {
				case "og:title":
					setOnce(&res.Title, content)
				case "og:description":
					setOnce(&res.Description, content)
				case "og:image", "og:url", "og:site_name", "og:type":
					if _, ok := res.Metadata[property[3:]]; !ok && content != "" {
						res.Metadata[property[3:]] = content
					}
				}
				if strings.EqualFold(name, "description") {
					setOnce(&metaDescription, content)
				}
			case "title":
				if pageTitle == "" && n.FirstChild != nil {
					pageTitle = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(root)

	setOnce(&res.Title, pageTitle)
	setOnce(&res.Description, metaDescription)
	return res
}

// PageTitle returns the text of the first title element.
func PageTitle(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "title" {
				continue
			}
			if z.Next() == html.TextToken {
				return strings.TrimSpace(string(z.Text()))
			}
			return ""
		}
	}
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
