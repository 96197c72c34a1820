package extractor

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
)

// Candidate is one surviving price reading after context filtering, ready
// for the selection policy (§4.3.1).
type Candidate struct {
	Price    decimal.Decimal
	Selector string
	IsSale   bool
	IsStrike bool
	Order    int // document order, for "first candidate" tie-breaks

	// InPreferContext marks a candidate whose node sits under one of
	// SiteRule.PreferContexts' ancestor-text substrings (§3.4). It narrows,
	// never vetoes: see narrowToPreferred below.
	InPreferContext bool
}

// SelectCandidate applies §4.3.1's selection policy among multiple
// surviving candidates. Returns false if candidates is empty.
func SelectCandidate(candidates []Candidate, rule *model.SiteRule, variant *model.VariantRule, previousPrice *decimal.Decimal) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	candidates = narrowToPreferred(candidates, rule)

	if rule != nil && rule.PreferSalePrice {
		if c, ok := pickSaleOverStrike(candidates); ok {
			return c, true
		}
	}

	if variant != nil && variant.ExpectedPriceRange != nil {
		inRange := filterInRange(candidates, *variant.ExpectedPriceRange)
		if len(inRange) > 0 {
			return pickClosestOrFirst(inRange, previousPrice), true
		}
		// No candidate satisfies the variant range: fall through to the
		// remaining policy rather than returning nothing (§4.3.1 doesn't
		// define this explicitly, but an absolute veto with zero survivors
		// would starve extraction; falling through still respects the
		// site-level range veto below).
	}

	if previousPrice != nil && rule != nil {
		if c, ok := pickClosestWithinSiteRange(candidates, rule.PriceRange, *previousPrice); ok {
			return c, true
		}
	}

	return firstInDocumentOrder(candidates), true
}

// narrowToPreferred boosts candidates sitting under one of
// SiteRule.PreferContexts' ancestor-text substrings by dropping every
// candidate that isn't, as long as at least one survives (§3.4). With no
// PreferContexts configured, or none of the candidates matching, the full
// set passes through unchanged -- this is a boost, not a veto.
func narrowToPreferred(candidates []Candidate, rule *model.SiteRule) []Candidate {
	if rule == nil || len(rule.PreferContexts) == 0 {
		return candidates
	}
	var preferred []Candidate
	for _, c := range candidates {
		if c.InPreferContext {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) == 0 {
		return candidates
	}
	return preferred
}

func pickSaleOverStrike(candidates []Candidate) (Candidate, bool) {
	hasStrike := false
	for _, c := range candidates {
		if c.IsStrike {
			hasStrike = true
			break
		}
	}
	if !hasStrike {
		return Candidate{}, false
	}
	var sale []Candidate
	for _, c := range candidates {
		if c.IsSale {
			sale = append(sale, c)
		}
	}
	if len(sale) == 0 {
		return Candidate{}, false
	}
	return firstInDocumentOrder(sale), true
}

func filterInRange(candidates []Candidate, r model.PriceRange) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if r.Contains(c.Price) {
			out = append(out, c)
		}
	}
	return out
}

func pickClosestOrFirst(candidates []Candidate, previousPrice *decimal.Decimal) Candidate {
	if previousPrice == nil {
		return firstInDocumentOrder(candidates)
	}
	return closestTo(candidates, *previousPrice)
}

// pickClosestWithinSiteRange implements: take the candidate minimizing
// |candidate - previous_price|, but only when that candidate is also
// within SiteRule.price_range; otherwise the absolute range veto means we
// don't pick it at all (§4.3.1's "range membership is an absolute veto
// over proximity").
func pickClosestWithinSiteRange(candidates []Candidate, siteRange model.PriceRange, previousPrice decimal.Decimal) (Candidate, bool) {
	inRange := filterInRange(candidates, siteRange)
	if len(inRange) == 0 {
		return Candidate{}, false
	}
	return closestTo(inRange, previousPrice), true
}

func closestTo(candidates []Candidate, target decimal.Decimal) Candidate {
	best := candidates[0]
	bestDiff := best.Price.Sub(target).Abs()
	for _, c := range candidates[1:] {
		diff := c.Price.Sub(target).Abs()
		if diff.LessThan(bestDiff) {
			best = c
			bestDiff = diff
		}
	}
	return best
}

func firstInDocumentOrder(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Order < best.Order {
			best = c
		}
	}
	return best
}
