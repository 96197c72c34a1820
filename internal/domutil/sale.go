package domutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var saleTags = map[string]bool{"ins": true, "em": true, "strong": true}
var strikeTags = map[string]bool{"del": true, "s": true, "strike": true}
var saleClassSubstrings = []string{"sale", "current", "now"}

// ClassifySalePresentation reports whether sel (or one of its ancestors, up
// to AncestorMaxLevels) sits inside a sale-price presentation (<ins>,
// <em>, <strong>, or a class containing sale/current/now) or a
// strikethrough/regular-price presentation (<del>, <s>, <strike>), per the
// selection policy in §4.3.1.
func ClassifySalePresentation(sel *goquery.Selection) (isSale bool, isStrike bool) {
	node := sel
	for level := 0; level < AncestorMaxLevels && node.Length() > 0; level++ {
		tag := goquery.NodeName(node)
		if strikeTags[tag] {
			return false, true
		}
		if saleTags[tag] {
			return true, false
		}
		class, _ := node.Attr("class")
		lower := strings.ToLower(class)
		for _, s := range saleClassSubstrings {
			if strings.Contains(lower, s) {
				return true, false
			}
		}
		node = node.Parent()
	}
	return false, false
}
