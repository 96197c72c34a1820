package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExtractionAttempt is the ephemeral record produced by one run of the tier
// cascade for one machine (§3.2). It is not persisted on its own, and the
// orchestrator does not build one: it writes the cascade's outcome straight
// into a PriceHistory row, so RedirectCount and Debug are not persisted.
type ExtractionAttempt struct {
	MachineID      primitive.ObjectID `json:"machine_id"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	TierUsed       Tier               `json:"tier_used"`
	ExtractedPrice *decimal.Decimal   `json:"extracted_price"`
	SelectorOrPath string             `json:"selector_or_path"`
	Confidence     float64            `json:"confidence"`

	ValidationStatus ValidationStatus `json:"validation_status"`
	RequiresApproval bool             `json:"requires_approval"`

	LLMCostUSD float64 `json:"llm_cost_usd,omitempty"`
	LLMTokens  int     `json:"llm_tokens,omitempty"`

	// ReasonCode carries a §7 taxonomy code when the attempt failed or was
	// downgraded; empty on a clean PASS.
	ReasonCode string `json:"reason_code,omitempty"`

	// RedirectCount is the number of redirects the fetch followed before
	// landing on the page actually scraped (triage-only, SPEC_FULL §4).
	RedirectCount int `json:"redirect_count,omitempty"`

	Debug *DebugArtifacts `json:"debug,omitempty"`
}

// DebugArtifacts captures pre/post-interaction snapshots for the dynamic
// tier when a batch is run with debug:true (SPEC_FULL §4, staging-only
// capture mirroring the teacher's own debug screenshot path).
type DebugArtifacts struct {
	PreInteractionHTML  string `json:"pre_interaction_html,omitempty"`
	PostInteractionHTML string `json:"post_interaction_html,omitempty"`
	ScreenshotPath      string `json:"screenshot_path,omitempty"`
}
