package fetch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// stripped elements never contribute text.
var stripped = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "svg": true,
}

// Extract parses an HTML page and returns its title and the main content
// region rendered as markdown.
func Extract(body []byte) (title, content string, err error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	if t := findFirst(doc, func(n *html.Node) bool { return isElement(n, "title") }); t != nil {
		title = strings.TrimSpace(textOf(t))
	}

	removeStripped(doc)

	var w mdWriter
	renderMarkdown(contentRegion(doc), &w, 0)
	return title, cleanMarkdown(string(w.buf)), nil
}

// contentRegion picks article, then main, then a content container, then
// body, then the whole document.
func contentRegion(doc *html.Node) *html.Node {
	matchers := []func(*html.Node) bool{
		func(n *html.Node) bool { return isElement(n, "article") },
		func(n *html.Node) bool { return isElement(n, "main") },
		isContentContainer,
		func(n *html.Node) bool { return isElement(n, "body") },
	}
	for _, m := range matchers {
		if n := findFirst(doc, m); n != nil && strings.TrimSpace(textOf(n)) != "" {
			return n
		}
	}
	return doc
}

func isContentContainer(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if id := getAttr(n, "id"); id == "content" || id == "main" {
		return true
	}
	if n.Data != "div" {
		return false
	}
	for _, class := range strings.Fields(getAttr(n, "class")) {
		if class == "content" || class == "main" {
			return true
		}
	}
	return false
}

func removeStripped(n *html.Node) {
	var doomed []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && stripped[c.Data] {
			doomed = append(doomed, c)
			continue
		}
		removeStripped(c)
	}
	for _, c := range doomed {
		n.RemoveChild(c)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// mdWriter lets closing inline markers hug the preceding word.
type mdWriter struct {
	buf []byte
}

func (w *mdWriter) WriteString(s string) {
	w.buf = append(w.buf, s...)
}

func (w *mdWriter) closeInline(marker string) {
	w.buf = bytes.TrimRight(w.buf, " ")
	w.buf = append(w.buf, marker...)
	w.buf = append(w.buf, ' ')
}

func renderMarkdown(n *html.Node, sb *mdWriter, depth int) {
	if depth > 80 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "title", "head":
			return
		case "h1":
			sb.WriteString("\n\n# ")
		case "h2":
			sb.WriteString("\n\n## ")
		case "h3":
			sb.WriteString("\n\n### ")
		case "h4", "h5", "h6":
			sb.WriteString("\n\n#### ")
		case "p", "div", "section", "table":
			sb.WriteString("\n\n")
		case "br", "tr":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "code":
			sb.WriteString("`")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "img":
			if alt := getAttr(n, "alt"); alt != "" {
				sb.WriteString("[Image: " + alt + "] ")
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
		case "pre":
			sb.WriteString("\n```\n\n")
		case "code":
			sb.closeInline("`")
		case "strong", "b":
			sb.closeInline("**")
		case "em", "i":
			sb.closeInline("*")
		case "a":
			if href := getAttr(n, "href"); href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
				sb.WriteString("(" + href + ") ")
			}
		}
	}
}

func cleanMarkdown(s string) string {
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
