package webscrape

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// noTitle is reported when a page has no <title> element.
const noTitle = "No title"

// contentTags are the elements whose text makes up a page's content, in the
// order they are collected.
var contentTags = []string{"p", "article", "main", "section"}

// invisibleTags never contribute text.
var invisibleTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// extraction is what a parsed document yields.
type extraction struct {
	title string
	texts []string
	links []string
}

func extract(r io.Reader) (*extraction, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	ex := &extraction{title: noTitle}
	titleFound := false
	byTag := make(map[string][]string, len(contentTags))

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "title":
			if !titleFound {
				titleFound = true
				ex.title = strings.TrimSpace(nodeText(n))
			}
		case "a":
			if href, ok := attr(n, "href"); ok {
				ex.links = append(ex.links, href)
			}
		}
		for _, tag := range contentTags {
			if n.Data == tag {
				if text := strings.TrimSpace(nodeText(n)); text != "" {
					byTag[tag] = append(byTag[tag], text)
				}
			}
		}
	})

	// Grouped per tag, so nested elements (a <p> inside an <article>)
	// contribute once per matching tag.
	for _, tag := range contentTags {
		ex.texts = append(ex.texts, byTag[tag]...)
	}
	return ex, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// nodeText joins the visible text nodes under n with single spaces.
func nodeText(n *html.Node) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && invisibleTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(parts, " ")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
