package model

import "github.com/shopspring/decimal"

// PriceRange is an inclusive [min, max] sanity bound in a domain's local currency.
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Contains reports whether p falls within [Min, Max] inclusive.
func (r PriceRange) Contains(p decimal.Decimal) bool {
	return !p.LessThan(r.Min) && !p.GreaterThan(r.Max)
}

// InteractionStep is one move in a dynamic-tier variant-selection protocol
// (§4.4 step 4, §9 "declarative list of steps"). The dynamic extractor is a
// generic interpreter over a list of these.
type InteractionStep struct {
	Action         string `json:"action"`          // "click", "wait", "verify_text"
	SelectorOrText string `json:"selector_or_text"` // CSS selector, or a text/regex pattern for click-by-text and verify
	WaitMs         int    `json:"wait_ms,omitempty"`
}

// VariantRule overrides default extraction behavior for machines whose name
// matches one of Keywords (case-insensitive substring) and, if set, whose URL
// matches URLPattern (§4.2).
type VariantRule struct {
	// Keywords must be sorted longest/most-specific first so "ST50R" is
	// tried before "50R" (§4.2 invariant).
	Keywords          []string          `json:"keywords"`
	URLPattern        string            `json:"url_pattern,omitempty"`
	ExpectedPriceRange *PriceRange      `json:"expected_price_range,omitempty"`
	PreferredSelector string            `json:"preferred_selector,omitempty"`
	ColumnIndex       *int              `json:"column_index,omitempty"` // static-table column override
	Steps             []InteractionStep `json:"steps,omitempty"`        // dynamic-tier variant selection
}

// MachineOverride is a per-machine manual-correction rule: a known-good
// expected price plus the selector known to reproduce it, taking priority
// over everything else in the cascade. Recovered from the distillation's
// dropped machine_specific_rules table (SPEC_FULL §4).
type MachineOverride struct {
	MachineSlug      string   `json:"machine_slug"`
	ExpectedPrice    decimal.Decimal `json:"expected_price"`
	TolerancePercent float64  `json:"tolerance_percent"`
	PrimarySelector  string   `json:"primary_selector"`
	AvoidSelectors   []string `json:"avoid_selectors,omitempty"`
	PreferSalePrice  bool     `json:"prefer_sale_price,omitempty"`
}

// StaticTableRule configures column extraction for STATIC_TABLE sites (§4.3.2).
type StaticTableRule struct {
	HeaderKeywords []string `json:"header_keywords"`
	ColumnIndex    int      `json:"column_index"`
}

// SiteRule is the per-domain static configuration consulted by C2/C3/C4.
type SiteRule struct {
	Domain          string       `json:"domain"`
	Type            SiteRuleType `json:"type"`
	PriceSelectors  []string     `json:"price_selectors"`
	AvoidSelectors  []string     `json:"avoid_selectors,omitempty"`
	AvoidContexts   []string     `json:"avoid_contexts,omitempty"`
	PreferContexts  []string     `json:"prefer_contexts,omitempty"`
	VariantRules    []VariantRule `json:"variant_rules,omitempty"`
	MachineOverrides []MachineOverride `json:"machine_overrides,omitempty"`
	PriceRange      PriceRange   `json:"price_range"`
	RequiresDynamic bool         `json:"requires_dynamic"`
	PreferSalePrice bool         `json:"prefer_sale_price"`

	// EnableDigitCorrection gates the ±10^n salvage heuristic in VALIDATE
	// (§9 Open Question: per-site opt-in, default false).
	EnableDigitCorrection bool `json:"enable_digit_correction"`

	StaticTable *StaticTableRule `json:"static_table,omitempty"`
}
