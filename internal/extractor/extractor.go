// Package extractor implements the tier cascade: static DOM extraction
// (C3), headless-browser-driven extraction (C4), and LLM extraction (C5),
// unified behind one Extractor capability (§9 "tagged variant among tiers").
package extractor

import (
	"context"

	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
)

// Input is everything a tier needs to attempt extraction for one machine.
type Input struct {
	Machine         *model.Machine
	Domain          string
	SiteRule        *model.SiteRule // may be nil: generic fallback behavior applies
	VariantRule     *model.VariantRule
	MachineOverride *model.MachineOverride

	HTML string // raw page HTML, already fetched by the caller
	URL  string // final URL after redirects

	// ContainerSelector restricts candidate nodes to those within this CSS
	// selector's subtree, set by the dynamic tier's post-interaction re-parse
	// to keep bundle widgets elsewhere on the page from contaminating
	// extraction (§4.4 step 6). Empty for the static tier: no scoping.
	ContainerSelector string

	// Debug requests pre/post-interaction snapshot capture (dynamic tier only).
	Debug bool
}

// Result is what a tier returns on success.
type Result struct {
	Price          decimal.Decimal
	Tier           model.Tier
	SelectorOrPath string
	Confidence     float64
	Debug          *model.DebugArtifacts
}

// Extractor is the single capability all tiers implement, so the
// orchestrator's cascade is a trivial fold over an ordered list (§9).
type Extractor interface {
	// Extract attempts to find the price for in.Machine. On failure it
	// returns a nil *Result and an *Error carrying a §7 taxonomy code.
	Extract(ctx context.Context, in Input) (*Result, error)
}
