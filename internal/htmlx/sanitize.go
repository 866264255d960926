// Package htmlx restricts newsletter HTML to the email-safe tag subset and renders it as
// plain text.
package htmlx

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blocks become paragraph boundaries; their content is kept.
var blocks = []string{
	"p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "blockquote",
	"section", "article", "header", "footer", "aside", "nav", "center", "pre", "address",
	"figure", "figcaption", "dl", "dt", "dd", "table", "thead", "tbody", "tfoot", "tr", "td", "th", "hr",
}

var isBlock = func() map[string]bool {
	m := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		m[b] = true
	}
	return m
}()

var policy = newPolicy()

// newPolicy is the allow-list pass: unsafe markup, attributes and URL schemes go here.
// Layout is normalized afterwards.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(blocks...)
	p.AllowElements("strong", "b", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto")
	p.SkipElementsContent("template", "head")
	return p
}

func safeURL(raw string, schemes ...string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		if err == nil && u.Scheme == "mailto" {
			return u.String(), contains(schemes, "mailto")
		}
		return "", false
	}
	return u.String(), contains(schemes, strings.ToLower(u.Scheme))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func newElement(name string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: name, DataAtom: atom.Lookup([]byte(name)), Attr: attrs}
}

// paragraphs collects top-level output. Inline content accumulates in the open
// paragraph until a block boundary closes it.
type paragraphs struct {
	out  []*html.Node
	open *html.Node
}

func (p *paragraphs) current() *html.Node {
	if p.open == nil {
		p.open = newElement("p")
	}
	return p.open
}

func (p *paragraphs) close() {
	if p.open != nil && hasContent(p.open) {
		p.out = append(p.out, p.open)
	}
	p.open = nil
}

func hasContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data != "br" {
			return true
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

// walk copies src's children. dst is nil at paragraph level and the enclosing inline
// element otherwise.
func (p *paragraphs) walk(src, dst *html.Node) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if dst == nil {
				if p.open == nil && strings.TrimSpace(c.Data) == "" {
					continue
				}
				p.current().AppendChild(&html.Node{Type: html.TextNode, Data: c.Data})
				continue
			}
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: c.Data})
		case html.ElementNode:
			p.element(c, dst)
		}
	}
}

func (p *paragraphs) element(c, dst *html.Node) {
	if isBlock[c.Data] {
		if dst != nil {
			// A block nested in inline markup only gets a line break.
			if dst.FirstChild != nil {
				dst.AppendChild(newElement("br"))
			}
			p.walk(c, dst)
			return
		}
		p.close()
		p.walk(c, nil)
		p.close()
		return
	}

	var el *html.Node
	switch c.Data {
	case "strong", "b":
		el = newElement("strong")
	case "br":
		el = newElement("br")
	case "a":
		href, ok := safeURL(attr(c, "href"), "http", "https", "mailto")
		if !ok {
			p.walk(c, dst)
			return
		}
		el = newElement("a",
			html.Attribute{Key: "href", Val: href},
			html.Attribute{Key: "target", Val: "_blank"},
			html.Attribute{Key: "rel", Val: "noopener noreferrer"},
		)
	case "img":
		src, ok := safeURL(attr(c, "src"), "http", "https")
		if !ok {
			return
		}
		el = newElement("img",
			html.Attribute{Key: "src", Val: src},
			html.Attribute{Key: "alt", Val: attr(c, "alt")},
		)
	default:
		p.walk(c, dst)
		return
	}

	if dst == nil {
		if el.Data == "br" && p.open == nil {
			return
		}
		dst = p.current()
	}
	dst.AppendChild(el)
	p.walk(c, el)
}

// Sanitize reduces an HTML fragment to paragraphs of <strong>, <a>, <br> and <img>.
// Block elements such as div, li and headings each become their own <p>. Links get
// target="_blank" rel="noopener noreferrer"; unsafe URLs are removed.
func Sanitize(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	cleaned := policy.Sanitize(fragment)

	body := newElement("body")
	nodes, err := html.ParseFragment(strings.NewReader(cleaned), body)
	if err != nil {
		return "<p>" + html.EscapeString(fragment) + "</p>"
	}
	src := newElement("div")
	for _, n := range nodes {
		src.AppendChild(n)
	}

	var p paragraphs
	p.walk(src, nil)
	p.close()

	var b strings.Builder
	for _, n := range p.out {
		_ = html.Render(&b, n)
	}
	return b.String()
}
