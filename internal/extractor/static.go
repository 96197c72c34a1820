package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"pricewatch/internal/domutil"
	"pricewatch/internal/model"
	"pricewatch/internal/priceparse"
)

// StaticExtractor runs the learned-selector -> site-rule -> structured-data
// -> common-selector cascade over a fetched DOM (C3, §4.3).
type StaticExtractor struct{}

// NewStaticExtractor builds a StaticExtractor.
func NewStaticExtractor() *StaticExtractor { return &StaticExtractor{} }

// Extract implements Extractor.
func (e *StaticExtractor) Extract(_ context.Context, in Input) (*Result, error) {
	doc, err := newDocFromHTML(in.HTML)
	if err != nil {
		return nil, newError(CodeParseNoPrice, "parsing html", err)
	}
	return extractFromDocument(doc, in)
}

func newDocFromHTML(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// extractFromDocument is shared by the static tier and the dynamic tier's
// post-interaction re-parse (§4.4 step 6).
func extractFromDocument(doc *goquery.Document, in Input) (*Result, error) {
	if r, ok := tryMachineOverride(doc, in); ok {
		return r, nil
	}
	if r, ok := tryLearnedSelector(doc, in); ok {
		return r, nil
	}
	if in.SiteRule != nil && in.SiteRule.Type == model.SiteRuleStaticTable {
		if r, ok := tryStaticTable(doc, in); ok {
			return r, nil
		}
	}
	if in.SiteRule != nil {
		if r, ok := trySelectorList(doc, in, in.SiteRule.PriceSelectors, model.TierSiteRule); ok {
			return r, nil
		}
	}
	if r, ok := tryStructuredData(doc, in); ok {
		return r, nil
	}
	if r, ok := trySelectorList(doc, in, domutil.CommonPriceSelectors, model.TierCommonSelector); ok {
		return r, nil
	}
	return nil, newError(CodeParseNoPrice, "no candidate passed all filters", nil)
}

func tryMachineOverride(doc *goquery.Document, in Input) (*Result, bool) {
	if in.MachineOverride == nil {
		return nil, false
	}
	ov := in.MachineOverride
	sel := doc.Find(ov.PrimarySelector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	price, ok := priceparse.Parse(sel.Text())
	if !ok {
		return nil, false
	}
	tolerance := ov.ExpectedPrice.Mul(decimal.NewFromFloat(ov.TolerancePercent / 100))
	diff := price.Sub(ov.ExpectedPrice).Abs()
	if diff.GreaterThan(tolerance) {
		return nil, false
	}
	return &Result{
		Price:          price,
		Tier:           model.TierSiteRule,
		SelectorOrPath: ov.PrimarySelector,
		Confidence:     0.95,
	}, true
}

func tryLearnedSelector(doc *goquery.Document, in Input) (*Result, bool) {
	if in.Machine == nil {
		return nil, false
	}
	sel, ok := in.Machine.LearnedSelectorFor(in.Domain)
	if !ok || sel.Selector == "" {
		return nil, false
	}
	node := doc.Find(sel.Selector).First()
	if node.Length() == 0 {
		return nil, false
	}
	price, ok := priceparse.Parse(node.Text())
	if !ok {
		return nil, false
	}
	return &Result{
		Price:          price,
		Tier:           model.TierLearned,
		SelectorOrPath: sel.Selector,
		Confidence:     sel.Confidence,
	}, true
}

// trySelectorList implements §4.3 step 2/4: collect candidates across all
// selectors, filter by ancestor context and avoid_selectors, then apply the
// selection policy (§4.3.1).
func trySelectorList(doc *goquery.Document, in Input, selectors []string, tier model.Tier) (*Result, bool) {
	var candidates []Candidate
	order := 0

	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, node *goquery.Selection) {
			if in.SiteRule != nil && domutil.MatchesAnySelector(node, in.SiteRule.AvoidSelectors) {
				return
			}
			if in.SiteRule != nil && domutil.HasAvoidContext(node, in.SiteRule.AvoidContexts) {
				return
			}
			if in.ContainerSelector != "" && !domutil.WithinAncestorSelector(node, in.ContainerSelector) {
				return
			}
			price, ok := priceparse.Parse(node.Text())
			if !ok {
				return
			}
			isSale, isStrike := domutil.ClassifySalePresentation(node)
			preferred := in.SiteRule != nil && domutil.HasPreferContext(node, in.SiteRule.PreferContexts)
			candidates = append(candidates, Candidate{
				Price:           price,
				Selector:        selector,
				IsSale:          isSale,
				IsStrike:        isStrike,
				Order:           order,
				InPreferContext: preferred,
			})
			order++
		})
	}

	if len(candidates) == 0 {
		return nil, false
	}

	chosen, ok := SelectCandidate(candidates, in.SiteRule, in.VariantRule, machinePreviousPrice(in.Machine))
	if !ok {
		return nil, false
	}

	return &Result{
		Price:          chosen.Price,
		Tier:           tier,
		SelectorOrPath: chosen.Selector,
		Confidence:     0.8,
	}, true
}

func tryStructuredData(doc *goquery.Document, in Input) (*Result, bool) {
	offers := domutil.FindStructuredOffers(doc)
	if len(offers) == 0 {
		return nil, false
	}
	for _, offer := range offers {
		// offers.price is always the current/transactable price; priceSpecification.price
		// (offer.OriginalPrice) is parsed but not read here or anywhere else.
		price, ok := priceparse.Parse(offer.Price)
		if !ok {
			continue
		}
		return &Result{
			Price:          price,
			Tier:           model.TierStructuredData,
			SelectorOrPath: "ld+json:offers.price",
			Confidence:     0.9,
		}, true
	}
	return nil, false
}

// tryStaticTable implements §4.3.2: locate the first table whose header row
// matches a header keyword, find the first body row with a currency glyph,
// and read the configured column (overridable per machine via VariantRule).
func tryStaticTable(doc *goquery.Document, in Input) (*Result, bool) {
	rule := in.SiteRule.StaticTable
	if rule == nil {
		return nil, false
	}

	columnIndex := rule.ColumnIndex
	if in.VariantRule != nil && in.VariantRule.ColumnIndex != nil {
		columnIndex = *in.VariantRule.ColumnIndex
	}

	var found *Result
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := table.Find("tr").First().Text()
		if !headerMatchesAny(header, rule.HeaderKeywords) {
			return true // keep looking
		}

		rows := table.Find("tr")
		for i := 1; i < rows.Length(); i++ {
			row := rows.Eq(i)
			rowText := row.Text()
			if !strings.ContainsAny(rowText, "$€£¥") {
				continue
			}
			cells := row.Find("td")
			if columnIndex < 0 || columnIndex >= cells.Length() {
				continue
			}
			price, ok := priceparse.Parse(cells.Eq(columnIndex).Text())
			if !ok {
				continue
			}
			found = &Result{
				Price:          price,
				Tier:           model.TierSiteRule,
				SelectorOrPath: fmt.Sprintf("table>tr[%d]>td[%d]", i, columnIndex),
				Confidence:     0.9,
			}
			return false // stop: first matching body row
		}
		return false // stop: first matching table, even if no row panned out
	})

	if found == nil {
		return nil, false
	}
	return found, true
}

func headerMatchesAny(header string, keywords []string) bool {
	lower := strings.ToLower(header)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func machinePreviousPrice(m *model.Machine) *decimal.Decimal {
	if m == nil {
		return nil
	}
	return m.PreviousPrice()
}
