package htmlx

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	dropped    = map[atom.Atom]bool{atom.Script: true, atom.Style: true, atom.Head: true, atom.Template: true}
)

// ToText renders newsletter HTML as plain text for multipart email and clipboard export.
// Paragraphs become blank-line separated, <br> a newline, links "text (url)".
func ToText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), newElement("body"))
	if err != nil {
		return fragment
	}
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	out := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(spaceRun.ReplaceAllString(n.Data, " "))
		return
	case html.ElementNode:
		if dropped[n.DataAtom] {
			return
		}
		switch n.Data {
		case "br":
			b.WriteString("\n")
			return
		case "img":
			if alt := attr(n, "alt"); alt != "" {
				b.WriteString("[" + alt + "]")
			}
			return
		case "a":
			var inner strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeText(&inner, c)
			}
			text := strings.TrimSpace(inner.String())
			href := attr(n, "href")
			switch {
			case href == "" || text == href:
				b.WriteString(text)
			case text == "":
				b.WriteString(href)
			default:
				b.WriteString(text + " (" + href + ")")
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "h1", "h2", "h3", "h4", "li", "tr":
			b.WriteString("\n\n")
		}
	}
}
