// Package domutil holds DOM-candidate filtering helpers shared by the
// static (C3) and dynamic (C4) extractors: ancestor-context filtering,
// the common-selector fallback list, and structured-data parsing.
package domutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AncestorMaxLevels bounds how far up the tree context filtering walks
// (§4.3 step 2: "ancestor chain up to 4 levels").
const AncestorMaxLevels = 4

// HasAvoidContext reports whether any of sel's ancestors, up to
// AncestorMaxLevels levels up, has a class/id/text containing one of
// avoidContexts (case-insensitive substring).
func HasAvoidContext(sel *goquery.Selection, avoidContexts []string) bool {
	if len(avoidContexts) == 0 {
		return false
	}
	return ancestorMatches(sel, avoidContexts)
}

// HasPreferContext reports whether any ancestor context matches one of
// preferContexts, used to boost candidates (§4.3.1 doesn't require this
// directly, but the dynamic tier's scoped re-parse, §4.4 step 6, reuses it).
func HasPreferContext(sel *goquery.Selection, preferContexts []string) bool {
	if len(preferContexts) == 0 {
		return false
	}
	return ancestorMatches(sel, preferContexts)
}

func ancestorMatches(sel *goquery.Selection, substrings []string) bool {
	node := sel
	for level := 0; level < AncestorMaxLevels && node.Length() > 0; level++ {
		if contextTextMatches(node, substrings) {
			return true
		}
		node = node.Parent()
	}
	return false
}

func contextTextMatches(node *goquery.Selection, substrings []string) bool {
	class, _ := node.Attr("class")
	id, _ := node.Attr("id")
	haystack := strings.ToLower(class + " " + id + " " + node.Text())
	for _, s := range substrings {
		if s == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// MatchesAnySelector reports whether sel itself matches any of the given
// CSS selectors, used for the avoid_selectors outright-rejection list.
func MatchesAnySelector(sel *goquery.Selection, selectors []string) bool {
	for _, s := range selectors {
		if s == "" {
			continue
		}
		if sel.Is(s) {
			return true
		}
	}
	return false
}

// WithinAncestorSelector reports whether sel itself, or any of its ancestors
// at any depth, matches containerSelector (used by the dynamic tier to scope
// re-parsing to entry-summary/product-main, §4.4 step 6; unlike the
// avoid-context walk, this search is not bounded by AncestorMaxLevels).
func WithinAncestorSelector(sel *goquery.Selection, containerSelector string) bool {
	if containerSelector == "" {
		return true
	}
	return sel.ParentsFiltered(containerSelector).Length() > 0 || sel.Is(containerSelector)
}
