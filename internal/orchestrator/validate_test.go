package orchestrator

import (
	"testing"

	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestValidate_PassWithinSmallChange(t *testing.T) {
	previous := dec("1000")
	out := Validate(dec("1100"), nil, nil, &previous, false)
	if out.Status != model.ValidationPass || out.RequiresApproval {
		t.Fatalf("got %+v", out)
	}
}

func TestValidate_PassButRequiresApprovalOnModerateChange(t *testing.T) {
	previous := dec("1000")
	out := Validate(dec("1300"), nil, nil, &previous, false)
	if out.Status != model.ValidationPass || !out.RequiresApproval {
		t.Fatalf("got %+v, want PASS with requires_approval", out)
	}
}

func TestValidate_NeedsReviewOnLargeChangeWithoutCorrection(t *testing.T) {
	previous := dec("1000")
	out := Validate(dec("3000"), nil, nil, &previous, false)
	if out.Status != model.ValidationNeedsReview {
		t.Fatalf("got %+v, want NEEDS_REVIEW", out)
	}
}

// TestValidate_DigitCorrectionSalvage pins scenario M5: previous_price
// 1599.99, extracted 160, corrected to 1600 (160*10) since that's the unique
// ladder step landing within 0.15 of previous.
func TestValidate_DigitCorrectionSalvage(t *testing.T) {
	previous := dec("1599.99")
	out := Validate(dec("160"), nil, nil, &previous, true)
	if out.Status != model.ValidationPass {
		t.Fatalf("got status %v, want PASS", out.Status)
	}
	if !out.RequiresApproval {
		t.Fatal("expected requires_approval true when a correction was applied")
	}
	if !out.Price.Equal(dec("1600")) {
		t.Fatalf("got corrected price %s, want 1600", out.Price.String())
	}
}

func TestValidate_DigitCorrectionDisabledByDefault(t *testing.T) {
	previous := dec("1599.99")
	out := Validate(dec("160"), nil, nil, &previous, false)
	if out.Status != model.ValidationNeedsReview {
		t.Fatalf("got %+v, want NEEDS_REVIEW when digit correction is not enabled", out)
	}
}

func TestValidate_OutOfSiteRangeRejectsRegardlessOfChange(t *testing.T) {
	siteRange := &model.PriceRange{Min: dec("1000"), Max: dec("5000")}
	out := Validate(dec("50"), siteRange, nil, nil, false)
	if out.Status != model.ValidationOutOfRange {
		t.Fatalf("got %+v, want OUT_OF_RANGE", out)
	}
}

func TestValidate_NoPreviousPriceSkipsChangeCheck(t *testing.T) {
	out := Validate(dec("9999"), nil, nil, nil, false)
	if out.Status != model.ValidationPass || out.RequiresApproval {
		t.Fatalf("got %+v, want a clean PASS on first-ever extraction", out)
	}
}

func TestValidate_SingleFitDownwardCorrectionResolves(t *testing.T) {
	// 16000 with previous 1599.99: /10 = 1600 (fits), /100 = 160 (doesn't fit),
	// *10 = 160000 (doesn't fit) -- exactly one fit, so this one still
	// resolves. Use a genuinely ambiguous case instead: a previous price with
	// two ladder steps landing in tolerance is numerically contrived, so we
	// assert the single-fit case resolves and trust tryDigitCorrection's
	// len(fits) != 1 guard for the ambiguous branch.
	previous := dec("1599.99")
	out := Validate(dec("16000"), nil, nil, &previous, true)
	if out.Status != model.ValidationPass {
		t.Fatalf("got %+v, want PASS via /10 correction", out)
	}
	if !out.Price.Equal(dec("1600")) {
		t.Fatalf("got %s, want 1600", out.Price.String())
	}
}
