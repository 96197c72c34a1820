// Package orchestrator implements the extraction state machine (C6) and the
// concurrent batch dispatcher (C7).
package orchestrator

import (
	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
)

var (
	changeApprovalThreshold  = decimal.NewFromFloat(0.15)
	changeReviewThreshold    = decimal.NewFromFloat(0.50)
	digitCorrectionTolerance = decimal.NewFromFloat(0.15)
	ten                      = decimal.NewFromInt(10)
)

// ValidationOutcome is VALIDATE's verdict for one extracted price (§4.6).
type ValidationOutcome struct {
	Status           model.ValidationStatus
	Price            decimal.Decimal // possibly digit-corrected
	RequiresApproval bool
	ReasonCode       string
}

// Validate runs the §4.6 VALIDATE steps in order: range check, then change
// check (with an optional digit-correction salvage attempt gated by
// enableDigitCorrection).
func Validate(price decimal.Decimal, siteRange *model.PriceRange, variantRange *model.PriceRange, previousPrice *decimal.Decimal, enableDigitCorrection bool) ValidationOutcome {
	if siteRange != nil && !siteRange.Contains(price) {
		return ValidationOutcome{Status: model.ValidationOutOfRange, Price: price, ReasonCode: "price outside site range"}
	}
	if variantRange != nil && !variantRange.Contains(price) {
		return ValidationOutcome{Status: model.ValidationOutOfRange, Price: price, ReasonCode: "price outside variant range"}
	}

	if previousPrice == nil {
		return ValidationOutcome{Status: model.ValidationPass, Price: price}
	}

	delta := changeFraction(price, *previousPrice)

	if delta.LessThanOrEqual(changeApprovalThreshold) {
		return ValidationOutcome{Status: model.ValidationPass, Price: price}
	}
	if delta.LessThanOrEqual(changeReviewThreshold) {
		return ValidationOutcome{Status: model.ValidationPass, Price: price, RequiresApproval: true, ReasonCode: "change exceeds auto-apply threshold"}
	}

	if enableDigitCorrection {
		if corrected, ok := tryDigitCorrection(price, *previousPrice); ok {
			return ValidationOutcome{Status: model.ValidationPass, Price: corrected, RequiresApproval: true, ReasonCode: "digit correction applied"}
		}
	}

	return ValidationOutcome{Status: model.ValidationNeedsReview, Price: price, ReasonCode: "change exceeds review threshold"}
}

func changeFraction(price, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.NewFromInt(0)
	}
	return price.Sub(previous).Abs().Div(previous)
}

// tryDigitCorrection implements the ±10^n ladder (up to 3 steps) described
// in §9's Open Question resolution: multiply or divide the candidate by 10,
// up to three times, and accept it only if exactly one adjusted value lands
// within 0.15 of previous (an ambiguous match is not a correction).
func tryDigitCorrection(price, previous decimal.Decimal) (decimal.Decimal, bool) {
	var fits []decimal.Decimal

	candidate := price
	for i := 0; i < 3; i++ {
		candidate = candidate.Mul(ten)
		if changeFraction(candidate, previous).LessThanOrEqual(digitCorrectionTolerance) {
			fits = append(fits, candidate)
		}
	}

	candidate = price
	for i := 0; i < 3; i++ {
		candidate = candidate.Div(ten)
		if changeFraction(candidate, previous).LessThanOrEqual(digitCorrectionTolerance) {
			fits = append(fits, candidate)
		}
	}

	if len(fits) != 1 {
		return decimal.Decimal{}, false
	}
	return fits[0], true
}
