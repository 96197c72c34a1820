package extractor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"pricewatch/internal/model"
)

// productContainerSelector is the entry-summary / product-main ancestor
// that bundle widgets elsewhere on the page sit outside of (§4.4 step 6).
const productContainerSelector = ".entry-summary, .product-main, [class*='entry-summary'], [class*='product-main']"

// BrowserAcquirer hands out a pooled chromedp context and releases it on
// every exit path (§5: "fixed capacity, acquire/release with guaranteed
// release"). Implemented by internal/browserpool.Pool.
type BrowserAcquirer interface {
	Acquire(ctx context.Context) (context.Context, func(), error)
}

// DynamicExtractor drives a headless browser to select the machine's
// variant and read the updated DOM (C4, §4.4).
type DynamicExtractor struct {
	Pool           BrowserAcquirer
	NavigateTimeout time.Duration
	VerifyTimeout   time.Duration
}

// NewDynamicExtractor builds a DynamicExtractor backed by pool.
func NewDynamicExtractor(pool BrowserAcquirer) *DynamicExtractor {
	return &DynamicExtractor{
		Pool:            pool,
		NavigateTimeout: 30 * time.Second,
		VerifyTimeout:   5 * time.Second,
	}
}

// Extract implements Extractor (§4.4's 7-step protocol).
func (e *DynamicExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	browserCtx, release, err := e.Pool.Acquire(ctx)
	if err != nil {
		return nil, newError(CodeDynamicNavigationFailed, "acquiring browser", err)
	}
	defer release() // step 7: release on every exit path

	navCtx, cancelNav := context.WithTimeout(browserCtx, e.NavigateTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(in.URL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(1*time.Second),
	); err != nil {
		return nil, newError(CodeDynamicNavigationFailed, "navigating to "+in.URL, err)
	}

	dismissPopups(navCtx)

	var preHTML string
	if in.Debug {
		_ = chromedp.Run(navCtx, chromedp.InnerHTML("html", &preHTML, chromedp.ByQuery))
	}

	steps := resolveSteps(in.VariantRule)
	if len(steps) > 0 {
		if err := runInteractionSteps(navCtx, steps, e.VerifyTimeout); err != nil {
			return nil, newError(CodeDynamicVariantNotFound, "running variant selection steps", err)
		}
	}

	// step 5: wait for an AJAX/price update, bounded
	chromedp.Run(navCtx, chromedp.Sleep(minDuration(e.VerifyTimeout, 5*time.Second)))

	var postHTML string
	if err := chromedp.Run(navCtx, chromedp.InnerHTML("html", &postHTML, chromedp.ByQuery)); err != nil {
		return nil, newError(CodeDynamicNavigationFailed, "reading post-interaction html", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(postHTML))
	if err != nil {
		return nil, newError(CodeParseNoPrice, "parsing post-interaction html", err)
	}

	in.ContainerSelector = scopeToProductContainer(doc)
	result, extractErr := extractFromDocument(doc, in)
	if extractErr != nil {
		return nil, extractErr
	}
	result.Tier = model.TierDynamic

	if in.Debug {
		result.Debug = &model.DebugArtifacts{
			PreInteractionHTML:  preHTML,
			PostInteractionHTML: postHTML,
		}
		capturePostInteractionScreenshot(navCtx, result.Debug)
	}

	return result, nil
}

// dismissPopups runs the popup-dismissal routine: hide high-z-index
// overlays and click anything that looks like a close button. Best-effort,
// never fatal (§4.4 step 3).
func dismissPopups(ctx context.Context) {
	script := `
		(() => {
			document.querySelectorAll('body *').forEach(el => {
				const z = parseInt(window.getComputedStyle(el).zIndex, 10);
				if (!isNaN(z) && z > 100) {
					const text = (el.textContent || '').toLowerCase();
					if (/close|dismiss|no thanks|×/.test(text) || el.getAttribute('aria-label') === 'Close') {
						el.style.display = 'none';
					}
				}
			});
			document.querySelectorAll('button, a, [role="button"]').forEach(el => {
				const text = (el.textContent || '').trim().toLowerCase();
				if (/^(close|dismiss|×|x|no thanks)$/.test(text)) {
					el.click();
				}
			});
		})();
	`
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		log.Printf("[extractor:dynamic] popup dismissal best-effort failed: %v", err)
	}
}

// resolveSteps picks the declarative interaction steps for this machine's
// variant (§9: "generic interpreter" over a {action, selector_or_text,
// wait_ms} list).
func resolveSteps(vr *model.VariantRule) []model.InteractionStep {
	if vr == nil {
		return nil
	}
	return vr.Steps
}

func runInteractionSteps(ctx context.Context, steps []model.InteractionStep, verifyTimeout time.Duration) error {
	for _, step := range steps {
		switch step.Action {
		case "click":
			if err := clickBySelectorOrText(ctx, step.SelectorOrText); err != nil {
				return fmt.Errorf("click %q: %w", step.SelectorOrText, err)
			}
		case "wait":
			wait := time.Duration(step.WaitMs) * time.Millisecond
			if wait <= 0 {
				wait = 500 * time.Millisecond
			}
			chromedp.Run(ctx, chromedp.Sleep(wait))
		case "verify_text":
			if err := verifyTextAppears(ctx, step.SelectorOrText, verifyTimeout); err != nil {
				return fmt.Errorf("verify text %q: %w", step.SelectorOrText, err)
			}
		default:
			return fmt.Errorf("unknown interaction step action %q", step.Action)
		}
		if step.WaitMs > 0 && step.Action != "wait" {
			chromedp.Run(ctx, chromedp.Sleep(time.Duration(step.WaitMs)*time.Millisecond))
		}
	}
	return nil
}

// clickBySelectorOrText clicks a CSS selector directly, or, when the string
// doesn't look like a selector, finds the first visible clickable element
// whose text matches it (regex), covering §4.4's power/model/bundle
// selection examples.
func clickBySelectorOrText(ctx context.Context, selectorOrText string) error {
	if looksLikeCSSSelector(selectorOrText) {
		return chromedp.Run(ctx, chromedp.Click(selectorOrText, chromedp.ByQuery))
	}

	script := fmt.Sprintf(`
		(() => {
			const re = new RegExp(%q, 'i');
			const candidates = document.querySelectorAll('button, a, [role="radio"], [role="tab"], label, [role="button"]');
			for (const el of candidates) {
				if (re.test((el.textContent || '').trim())) {
					el.click();
					return true;
				}
			}
			return false;
		})();
	`, selectorOrText)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no clickable element matched %q", selectorOrText)
	}
	return nil
}

func verifyTextAppears(ctx context.Context, pattern string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var present bool
		script := fmt.Sprintf(`new RegExp(%q, 'i').test(document.body.textContent || '')`, pattern)
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &present)); err == nil && present {
			return nil
		}
		chromedp.Run(ctx, chromedp.Sleep(250*time.Millisecond))
	}
	return fmt.Errorf("text matching %q never appeared", pattern)
}

// looksLikeCSSSelector distinguishes a CSS selector (".variant-30w") from a
// text-match pattern ("\d+W", "Basic Bundle") by its leading character: only
// strings starting with '.', '#', '[' or '>' count as selectors, so a
// selector that starts with a tag name ("button.variant-30w") is treated as
// a text pattern.
func looksLikeCSSSelector(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '.', '#', '[', '>':
		return true
	}
	return false
}

// scopeToProductContainer reports the container selector to scope candidate
// collection to, via domutil.WithinAncestorSelector, if the post-interaction
// document has one; otherwise "" so candidate collection runs unscoped over
// the whole document (§4.4 step 6).
func scopeToProductContainer(doc *goquery.Document) string {
	if doc.Find(productContainerSelector).Length() == 0 {
		return ""
	}
	return productContainerSelector
}

func capturePostInteractionScreenshot(ctx context.Context, debug *model.DebugArtifacts) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		log.Printf("[extractor:dynamic] debug screenshot capture failed: %v", err)
		return
	}
	// The screenshot bytes are not stored anywhere; this core only records
	// that capture succeeded, and how many bytes it produced, as a
	// placeholder ScreenshotPath.
	debug.ScreenshotPath = fmt.Sprintf("pending:%d-bytes", len(buf))
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
