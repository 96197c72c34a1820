package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// dropTags are removed wholesale from the LLM payload, except scripts
// carrying JSON-LD which the caller already consumes separately (§4.5
// "Input preparation").
var dropTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "svg": true, "noscript": true,
}

var headAllowedTags = map[string]bool{"title": true, "meta": true}

// TrimHTMLForLLM deterministically reduces rawHTML to the minimal payload
// the LLM needs (§4.5): scripts/styles/iframes/svg/noscript stripped
// (except JSON-LD), <head> limited to title, meta tags (all of them, not
// only product ones) and JSON-LD, <body> limited to price/product-flavored
// subtrees (text outside them is dropped), whitespace collapsed, and
// truncated to maxChars.
func TrimHTMLForLLM(rawHTML string, maxChars int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return truncate(collapseWhitespace(rawHTML), maxChars)
	}

	var b strings.Builder
	walkTrim(doc, &b, false, false)

	return truncate(collapseWhitespace(b.String()), maxChars)
}

func walkTrim(n *html.Node, b *strings.Builder, insideBody, insideRelevant bool) {
	if n.Type == html.ElementNode {
		if dropTags[n.Data] && !isJSONLD(n) {
			return
		}
		if n.Data == "body" {
			insideBody = true
		}
		if n.Data == "head" && !headAllowedTags[n.Data] {
			// still descend into head; children are filtered individually
		}
	}

	if n.Type == html.ElementNode && insideBody && !insideRelevant && n.Data != "body" && n.Data != "html" {
		if !isJSONLD(n) && !elementIsRelevant(n) {
			// Not itself relevant: still descend, in case a descendant is
			// (e.g. a wrapper div around the actual price span), but drop
			// this element's own text.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.TextNode {
					walkTrim(c, b, insideBody, false)
				}
			}
			return
		}
		insideRelevant = true
	}

	if n.Type == html.ElementNode && !insideBody && n.Data != "head" && n.Data != "html" && n.Data != "body" {
		if !headAllowedTags[n.Data] && !isJSONLD(n) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walkTrim(c, b, insideBody, insideRelevant)
			}
			return
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
		return
	}

	if n.Type == html.ElementNode {
		renderOpenTag(n, b)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkTrim(c, b, insideBody, insideRelevant)
	}

	if n.Type == html.ElementNode && isJSONLD(n) {
		// JSON-LD script content is a text node child already emitted above.
	}
}

func renderOpenTag(n *html.Node, b *strings.Builder) {
	b.WriteString("<")
	b.WriteString(n.Data)
	for _, attr := range n.Attr {
		if attr.Key == "class" || attr.Key == "id" || attr.Key == "itemprop" || attr.Key == "type" {
			b.WriteString(" ")
			b.WriteString(attr.Key)
			b.WriteString("=\"")
			b.WriteString(attr.Val)
			b.WriteString("\"")
		}
	}
	b.WriteString("> ")
}

// elementIsRelevant reports whether n's own class/id contains "price" or
// "product", or n is an <h1> (§4.5: "retain only elements whose class or
// id contains price or product ... and any h1 within a product section").
func elementIsRelevant(n *html.Node) bool {
	if n.Data == "h1" {
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key != "class" && attr.Key != "id" {
			continue
		}
		lower := strings.ToLower(attr.Val)
		if strings.Contains(lower, "price") || strings.Contains(lower, "product") {
			return true
		}
	}
	return false
}

func isJSONLD(n *html.Node) bool {
	if n.Data != "script" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == "type" && attr.Val == "application/ld+json" {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
