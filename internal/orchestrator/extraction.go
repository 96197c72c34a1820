package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/extractor"
	"pricewatch/internal/model"
	"pricewatch/internal/siterule"
	"pricewatch/internal/store"
)

// ErrMachineNotFound is returned by RunExtraction when machineID doesn't
// resolve to a Machine record.
var ErrMachineNotFound = errors.New("orchestrator: machine not found")

// ExtractionResult is what RunExtraction returns: the written PriceHistory
// row plus whether the run ended in outright failure (§6.1's
// {success, new_price, old_price, tier_used, requires_approval, reason}).
type ExtractionResult struct {
	History *model.PriceHistory
	Success bool
	Reason  string
}

// Extractor composes the three tier implementations behind one cascade
// (§4.6, §9 "tagged variant among tiers").
type Extractor struct {
	Fetcher *extractor.Fetcher
	Static  extractor.Extractor
	Dynamic extractor.Extractor
	LLM     *extractor.LLMExtractor
	Rules   *siterule.Table
	Store   store.Store

	FetchTimeout   time.Duration
	DynamicTimeout time.Duration
	LLMTimeout     time.Duration
}

// RunExtraction executes the C6 state machine for one machine: FETCHING ->
// STATIC -> (DYNAMIC) -> (LLM) -> VALIDATE -> persist, escalating tiers only
// when a tier fails to extract (§4.6). Validation runs once, on the
// surviving tier's result; a result that fails validation is not escalated
// to a later tier.
func (e *Extractor) RunExtraction(ctx context.Context, machineID primitive.ObjectID, batchID *primitive.ObjectID, debug bool) (*ExtractionResult, error) {
	machine, err := e.Store.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if machine == nil {
		return nil, ErrMachineNotFound
	}

	domain, err := siterule.DomainFromURL(machine.ProductURL)
	if err != nil {
		return e.persistFailure(ctx, machine, batchID, "FETCH_PERMANENT", "invalid product url")
	}

	rule, _ := e.Rules.Lookup(domain)
	variantRule, _ := e.Rules.MachineRule(domain, machine.Name, machine.ProductURL)
	override, _ := e.Rules.MachineOverride(domain, machine.Name)

	fetchCtx, cancel := context.WithTimeout(ctx, e.FetchTimeout)
	fetched, fetchErr := e.Fetcher.Fetch(fetchCtx, machine.ProductURL)
	cancel()
	if fetchErr != nil {
		var extractErr *extractor.Error
		reasonCode := "FETCH_PERMANENT"
		if errors.As(fetchErr, &extractErr) {
			reasonCode = string(extractErr.Code)
		}
		if rule == nil || !rule.RequiresDynamic {
			return e.persistFailure(ctx, machine, batchID, reasonCode, fetchErr.Error())
		}
		// requires_dynamic sites get a shot at the dynamic tier even when the
		// plain fetch failed, since the page may only render via JS anyway.
	}

	in := extractor.Input{
		Machine:         machine,
		Domain:          domain,
		SiteRule:        rule,
		VariantRule:     variantRule,
		MachineOverride: override,
		URL:             machine.ProductURL,
		Debug:           debug,
	}
	if fetched != nil {
		in.HTML = fetched.HTML
		in.URL = fetched.FinalURL
	}

	result, tierErr := e.runCascade(ctx, in, rule)
	if tierErr != nil {
		return e.persistFailure(ctx, machine, batchID, string(codeOf(tierErr)), tierErr.Error())
	}

	return e.validateAndPersist(ctx, machine, batchID, rule, variantRule, in.HTML, result)
}

// runCascade tries STATIC, then DYNAMIC if STATIC fails (or the site
// requires it), then LLM, returning the first tier's result to pass
// extraction (not yet VALIDATE -- that happens once, after escalation, on
// whichever tier's raw result survives).
func (e *Extractor) runCascade(ctx context.Context, in extractor.Input, rule *model.SiteRule) (*extractor.Result, error) {
	requiresDynamic := rule != nil && rule.RequiresDynamic

	var lastErr error
	if in.HTML != "" {
		res, err := e.Static.Extract(ctx, in)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	if requiresDynamic || lastErr != nil {
		dynCtx, cancel := context.WithTimeout(ctx, e.DynamicTimeout)
		res, err := e.Dynamic.Extract(dynCtx, in)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	if e.LLM != nil {
		llmCtx, cancel := context.WithTimeout(ctx, e.LLMTimeout)
		res, err := e.LLM.Extract(llmCtx, in)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

func (e *Extractor) validateAndPersist(ctx context.Context, machine *model.Machine, batchID *primitive.ObjectID, rule *model.SiteRule, variantRule *model.VariantRule, rawHTML string, res *extractor.Result) (*ExtractionResult, error) {
	var siteRange *model.PriceRange
	enableDigitCorrection := false
	if rule != nil {
		siteRange = &rule.PriceRange
		enableDigitCorrection = rule.EnableDigitCorrection
	}
	var variantRange *model.PriceRange
	if variantRule != nil {
		variantRange = variantRule.ExpectedPriceRange
	}

	outcome := Validate(res.Price, siteRange, variantRange, machine.PreviousPrice(), enableDigitCorrection)

	row := &model.PriceHistory{
		MachineID:        machine.ID,
		PreviousPrice:    machine.PreviousPrice(),
		TierUsed:         res.Tier,
		SelectorOrPath:   res.SelectorOrPath,
		Confidence:       res.Confidence,
		ValidationStatus: outcome.Status,
		ReasonCode:       outcome.ReasonCode,
		BatchID:          batchID,
		RequiresApproval: outcome.RequiresApproval,
	}
	if outcome.Status != model.ValidationNeedsReview {
		price := outcome.Price
		row.Price = &price
	}

	if err := e.Store.AppendPriceHistory(ctx, row); err != nil {
		return nil, err
	}

	accepted := row.IsAccepted()
	if accepted {
		if err := e.Store.UpdateMachinePrice(ctx, machine.ID, row.Price); err != nil {
			log.Printf("[orchestrator] failed to update machine price for %s: %v", machine.ID.Hex(), err)
		}
	}

	if res.Tier == model.TierLLM && res.SelectorOrPath != "" && accepted && rawHTML != "" {
		if extractor.LearnedSelectorFromResult(rawHTML, res.SelectorOrPath, outcome.Price) {
			sel := model.LearnedSelector{
				Selector:        res.SelectorOrPath,
				LastSuccessAt:   time.Now().UTC(),
				Confidence:      res.Confidence,
				PriceAtLearning: outcome.Price,
				LearnedVia:      model.TierLLM,
			}
			domain, err := siterule.DomainFromURL(machine.ProductURL)
			if err == nil {
				if err := e.Store.UpdateMachineLearnedSelector(ctx, machine.ID, domain, sel); err != nil {
					log.Printf("[orchestrator] failed to persist learned selector for %s: %v", machine.ID.Hex(), err)
				}
			}
		}
	}

	return &ExtractionResult{
		History: row,
		Success: accepted || outcome.Status == model.ValidationPass,
		Reason:  outcome.ReasonCode,
	}, nil
}

func (e *Extractor) persistFailure(ctx context.Context, machine *model.Machine, batchID *primitive.ObjectID, reasonCode, message string) (*ExtractionResult, error) {
	row := &model.PriceHistory{
		MachineID:        machine.ID,
		PreviousPrice:    machine.PreviousPrice(),
		TierUsed:         model.TierManual,
		ValidationStatus: model.ValidationNoPrice,
		ReasonCode:       reasonCode,
		BatchID:          batchID,
	}
	if err := e.Store.AppendPriceHistory(ctx, row); err != nil {
		return nil, err
	}
	return &ExtractionResult{History: row, Success: false, Reason: message}, nil
}

func codeOf(err error) extractor.Code {
	var extractErr *extractor.Error
	if errors.As(err, &extractErr) {
		return extractErr.Code
	}
	return extractor.CodeParseNoPrice
}
