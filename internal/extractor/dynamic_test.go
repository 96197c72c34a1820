package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/internal/model"
)

func TestLooksLikeCSSSelector(t *testing.T) {
	cases := map[string]bool{
		".variant-30w":   true,
		"#buy-button":    true,
		"[data-power]":   true,
		">div":           true,
		"30W":          false,
		"Basic Bundle": false,
		"":             false,
	}
	for in, want := range cases {
		if got := looksLikeCSSSelector(in); got != want {
			t.Errorf("looksLikeCSSSelector(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveSteps(t *testing.T) {
	if steps := resolveSteps(nil); steps != nil {
		t.Fatalf("expected nil steps for nil variant, got %v", steps)
	}
	vr := &model.VariantRule{Steps: []model.InteractionStep{{Action: "click", SelectorOrText: ".x"}}}
	if steps := resolveSteps(vr); len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
}

func TestScopeToProductContainer_ReturnsSelectorWhenEntrySummaryPresent(t *testing.T) {
	html := `<html><body>
<div class="bundle-widget"><span class="price">$9,999.00</span></div>
<div class="entry-summary"><span class="price">$1,299.00</span></div>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	containerSelector := scopeToProductContainer(doc)
	if containerSelector == "" {
		t.Fatal("expected a non-empty container selector when entry-summary is present")
	}

	in := Input{ContainerSelector: containerSelector}
	result, ok := trySelectorList(doc, in, []string{".price"}, model.TierCommonSelector)
	if !ok {
		t.Fatal("expected a surviving candidate within the container")
	}
	if !result.Price.Equal(d("1299")) {
		t.Fatalf("expected bundle price excluded by container scoping, got %s", result.Price.String())
	}
}

func TestScopeToProductContainer_FallsBackToWholeDocumentWhenNoContainer(t *testing.T) {
	html := `<html><body><span class="price">$42.00</span></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	containerSelector := scopeToProductContainer(doc)
	if containerSelector != "" {
		t.Fatalf("expected no container selector when none is present, got %q", containerSelector)
	}

	in := Input{ContainerSelector: containerSelector}
	result, ok := trySelectorList(doc, in, []string{".price"}, model.TierCommonSelector)
	if !ok {
		t.Fatal("expected a surviving candidate when no container scoping applies")
	}
	if !result.Price.Equal(d("42")) {
		t.Fatalf("expected 42, got %s", result.Price.String())
	}
}
