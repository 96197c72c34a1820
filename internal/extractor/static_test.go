package extractor

import (
	"context"
	"testing"

	"pricewatch/internal/model"
)

func TestStaticExtractor_LearnedSelectorHit(t *testing.T) {
	html := `<html><body><div class="wrap"><span class="my-price">$1,299.00</span></div></body></html>`
	machine := &model.Machine{
		LearnedSelectors: map[string]model.LearnedSelector{
			"example.com": {Selector: ".my-price", Confidence: 0.92},
		},
	}

	in := Input{Machine: machine, Domain: "example.com", HTML: html}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("1299")) {
		t.Fatalf("got %s, want 1299", res.Price.String())
	}
	if res.Tier != model.TierLearned {
		t.Fatalf("got tier %v, want TierLearned", res.Tier)
	}
}

func TestStaticExtractor_FallsThroughWhenLearnedSelectorMissesNode(t *testing.T) {
	html := `<html><body><span class="price">$499.00</span></body></html>`
	machine := &model.Machine{
		LearnedSelectors: map[string]model.LearnedSelector{
			"example.com": {Selector: ".gone", Confidence: 0.9},
		},
	}
	rule := &model.SiteRule{
		Domain:         "example.com",
		Type:           model.SiteRuleGeneric,
		PriceSelectors: []string{".price"},
		PriceRange:     priceRange("1", "100000"),
	}

	in := Input{Machine: machine, Domain: "example.com", HTML: html, SiteRule: rule}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("499")) {
		t.Fatalf("got %s, want 499", res.Price.String())
	}
	if res.Tier != model.TierSiteRule {
		t.Fatalf("got tier %v, want TierSiteRule", res.Tier)
	}
}

func TestStaticExtractor_MachineOverrideWinsOverEverything(t *testing.T) {
	html := `<html><body><span class="price">$9999.00</span><span class="correct">$2450.00</span></body></html>`
	override := &model.MachineOverride{
		MachineSlug:      "omtech-polar-50",
		ExpectedPrice:    d("2450"),
		TolerancePercent: 5,
		PrimarySelector:  ".correct",
	}
	rule := &model.SiteRule{PriceSelectors: []string{".price"}}

	in := Input{Domain: "example.com", HTML: html, SiteRule: rule, MachineOverride: override}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("2450")) {
		t.Fatalf("got %s, want 2450", res.Price.String())
	}
}

func TestStaticExtractor_StructuredDataHit(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Widget","offers":{"@type":"Offer","price":"349.99","priceCurrency":"USD"}}
</script>
</head><body></body></html>`

	in := Input{Domain: "example.com", HTML: html}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("349.99")) {
		t.Fatalf("got %s, want 349.99", res.Price.String())
	}
	if res.Tier != model.TierStructuredData {
		t.Fatalf("got tier %v, want TierStructuredData", res.Tier)
	}
}

func TestStaticExtractor_CommonSelectorFallback(t *testing.T) {
	html := `<html><body><div class="product-price">$59.00</div></body></html>`

	in := Input{Domain: "example.com", HTML: html}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("59")) {
		t.Fatalf("got %s, want 59", res.Price.String())
	}
	if res.Tier != model.TierCommonSelector {
		t.Fatalf("got tier %v, want TierCommonSelector", res.Tier)
	}
}

func TestStaticExtractor_NoPriceFound(t *testing.T) {
	html := `<html><body><p>Out of stock.</p></body></html>`

	in := Input{Domain: "example.com", HTML: html}
	_, err := NewStaticExtractor().Extract(context.Background(), in)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestStaticExtractor_StaticTableColumnExtraction(t *testing.T) {
	html := `<html><body><table>
<tr><th>Model</th><th>Power</th><th>Price</th></tr>
<tr><td>ST30</td><td>30W</td><td>$2,100.00</td></tr>
<tr><td>ST50</td><td>50W</td><td>$3,400.00</td></tr>
</table></body></html>`

	rule := &model.SiteRule{
		Domain: "example.com",
		Type:   model.SiteRuleStaticTable,
		StaticTable: &model.StaticTableRule{
			HeaderKeywords: []string{"price"},
			ColumnIndex:    2,
		},
	}

	in := Input{Domain: "example.com", HTML: html, SiteRule: rule}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("2100")) {
		t.Fatalf("got %s, want first matching row's price 2100", res.Price.String())
	}
}

func TestStaticExtractor_StaticTableColumnIndexOverrideByVariant(t *testing.T) {
	html := `<html><body><table>
<tr><th>Model</th><th>Price (30W)</th><th>Price (50W)</th></tr>
<tr><td>Router</td><td>$1,000.00</td><td>$1,800.00</td></tr>
</table></body></html>`

	col := 1
	rule := &model.SiteRule{
		Domain: "example.com",
		Type:   model.SiteRuleStaticTable,
		StaticTable: &model.StaticTableRule{
			HeaderKeywords: []string{"price"},
			ColumnIndex:    0,
		},
	}
	variant := &model.VariantRule{ColumnIndex: &col}

	in := Input{Domain: "example.com", HTML: html, SiteRule: rule, VariantRule: variant}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("1000")) {
		t.Fatalf("got %s, want 1000 (column overridden to index 1)", res.Price.String())
	}
}

func TestStaticExtractor_AvoidSelectorsExcludeBundleCandidate(t *testing.T) {
	html := `<html><body>
<div class="price">$899.00</div>
<div class="bundle-price">$1,499.00</div>
</body></html>`

	rule := &model.SiteRule{
		Domain:         "example.com",
		PriceSelectors: []string{".price", ".bundle-price"},
		AvoidSelectors: []string{".bundle-price"},
	}

	in := Input{Domain: "example.com", HTML: html, SiteRule: rule}
	res, err := NewStaticExtractor().Extract(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Price.Equal(d("899")) {
		t.Fatalf("got %s, want 899 (bundle price avoided)", res.Price.String())
	}
}
