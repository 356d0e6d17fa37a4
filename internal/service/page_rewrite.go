package service

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Attribute conventions recognized on exercise service pages.
const (
	attrEmbeddedExercise = "data-aplus-exercise"
	attrChapterLink      = "data-aplus-chapter"
	attrPathTemplate     = "data-aplus-path"
	attrInjectable       = "data-aplus"
	attrJQueryAlias      = "data-astra-jquery"

	defaultJQueryAlias = "$"
)

// urlRewriteRules lists the (tag, attribute) pairs whose relative values are
// rewritten to absolute URLs against the origin server.
var urlRewriteRules = []struct {
	tag  string
	attr string
}{
	{"img", "src"},
	{"script", "src"},
	{"iframe", "src"},
	{"link", "href"},
	{"a", "href"},
	{"video", "poster"},
	{"source", "src"},
}

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// isAbsoluteURL reports whether the value needs no rewriting: it already
// carries a scheme, is protocol-relative, or is an in-page anchor.
func isAbsoluteURL(value string) bool {
	return value == "" ||
		strings.HasPrefix(value, "//") ||
		strings.HasPrefix(value, "#") ||
		schemePrefix.MatchString(value)
}

// chapterLink is a parsed internal chapter reference. RoundKey is empty for
// the same-round form.
type chapterLink struct {
	RoundKey   string
	ChapterKey string
	Anchor     string
}

// parseChapterLink recognizes the two documented link shapes,
// "{round}/{chapter}.html[#anchor]" and "{chapter}.html[#anchor]", after
// discarding any leading ./ and ../ segments.
func parseChapterLink(href string) (chapterLink, bool) {
	link := chapterLink{}

	if idx := strings.Index(href, "#"); idx >= 0 {
		link.Anchor = href[idx:]
		href = href[:idx]
	}

	if !strings.HasSuffix(href, ".html") {
		return chapterLink{}, false
	}
	href = strings.TrimSuffix(href, ".html")

	for strings.HasPrefix(href, "./") || strings.HasPrefix(href, "../") {
		href = strings.TrimPrefix(href, "./")
		href = strings.TrimPrefix(href, "../")
	}

	parts := strings.Split(href, "/")
	switch len(parts) {
	case 1:
		link.ChapterKey = parts[0]
	case 2:
		link.RoundKey = parts[0]
		link.ChapterKey = parts[1]
	default:
		return chapterLink{}, false
	}

	if link.ChapterKey == "" {
		return chapterLink{}, false
	}

	return link, true
}

// isInternalChapterLink reports whether the element references another chapter
// of the course: either explicitly flagged, or an .html link whose class list
// carries both the "internal" and "reference" tokens.
func isInternalChapterLink(node *html.Node, href string) bool {
	if hasAttr(node, attrChapterLink) {
		return true
	}

	target := href
	if idx := strings.Index(target, "#"); idx >= 0 {
		target = target[:idx]
	}
	if !strings.HasSuffix(target, ".html") {
		return false
	}

	classes := strings.Fields(getAttr(node, "class"))
	hasInternal, hasReference := false, false
	for _, class := range classes {
		switch class {
		case "internal":
			hasInternal = true
		case "reference":
			hasReference = true
		}
	}

	return hasInternal && hasReference
}

func getAttr(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(node *html.Node, name string) bool {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return true
		}
	}
	return false
}

func setAttr(node *html.Node, name, value string) {
	for i := range node.Attr {
		if node.Attr[i].Key == name {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: name, Val: value})
}

// walkElements visits every element node in depth-first order. The visitor
// may mutate the node but not detach it.
func walkElements(node *html.Node, visit func(*html.Node)) {
	if node.Type == html.ElementNode {
		visit(node)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkElements(child, visit)
	}
}

// findElement returns the first element matching the predicate in depth-first
// order.
func findElement(node *html.Node, match func(*html.Node) bool) *html.Node {
	if node.Type == html.ElementNode && match(node) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, match); found != nil {
			return found
		}
	}
	return nil
}

// collectElements returns every element matching the predicate in depth-first
// order.
func collectElements(node *html.Node, match func(*html.Node) bool) []*html.Node {
	var matches []*html.Node
	walkElements(node, func(element *html.Node) {
		if match(element) {
			matches = append(matches, element)
		}
	})
	return matches
}

func elementText(node *html.Node) string {
	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(current *html.Node) {
		if current.Type == html.TextNode {
			builder.WriteString(current.Data)
		}
		for child := current.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return builder.String()
}
