package fetcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// noiseSelector lists nodes that never carry posting content
const noiseSelector = "script, style, img, head, footer, noscript, svg, iframe"

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// Clean parses raw HTML, removes noise nodes and returns the cleaned HTML
// together with its markdown rendering.
func Clean(raw string) (cleaned, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	cleaned, err = doc.Html()
	if err != nil {
		return "", "", fmt.Errorf("failed to render html: %w", err)
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		renderBlock(&b, n)
	}

	return cleaned, tidy(b.String()), nil
}

func renderBlock(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if t := collapse(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
		return
	case html.ElementNode:
	default:
		renderBlock(b, n)
		return
	}

	sel := goquery.NewDocumentFromNode(n).Selection

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " " + collapse(sel.Text()) + "\n\n")
	case "a":
		text := collapse(sel.Text())
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		switch {
		case href == "":
			b.WriteString(text + " ")
		case text == "":
			b.WriteString("[](" + href + ") ")
		default:
			b.WriteString("[" + text + "](" + href + ") ")
		}
	case "button":
		if text := collapse(sel.Text()); text != "" {
			b.WriteString("[" + text + "] ")
		}
	case "li":
		b.WriteString("\n- ")
		renderBlock(b, n)
		b.WriteString("\n")
	case "tr":
		var cells []string
		sel.Children().Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, collapse(cell.Text()))
		})
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |\n")
	case "br":
		b.WriteString("\n")
	case "p", "div", "section", "article", "main", "header", "nav", "ul", "ol", "table", "form", "aside":
		b.WriteString("\n\n")
		renderBlock(b, n)
		b.WriteString("\n\n")
	default:
		renderBlock(b, n)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	out := reBlankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}
