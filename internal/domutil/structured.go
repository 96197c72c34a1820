package domutil

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredOffer is the subset of a schema.org Product/Offer JSON-LD block
// this system cares about (§4.3 step 3).
type StructuredOffer struct {
	Price                  string
	PriceCurrency          string
	OriginalPrice          string // priceSpecification.price, when present
	TypeName               string
}

// jsonLDNode models just enough of the schema.org Product/Offer shape to
// pull a price out; unknown fields are ignored by json.Unmarshal.
type jsonLDNode struct {
	Type   json.RawMessage `json:"@type"`
	Offers json.RawMessage `json:"offers"`
	Graph  []jsonLDNode    `json:"@graph"`
}

type offerNode struct {
	Type               json.RawMessage   `json:"@type"`
	Price              json.RawMessage   `json:"price"`
	PriceCurrency      string            `json:"priceCurrency"`
	PriceSpecification *priceSpecNode    `json:"priceSpecification"`
}

type priceSpecNode struct {
	Price json.RawMessage `json:"price"`
}

// FindStructuredOffers scans every <script type="application/ld+json"> block
// in doc for Product-shaped objects and returns their offers.
func FindStructuredOffers(doc *goquery.Document) []StructuredOffer {
	var offers []StructuredOffer
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		offers = append(offers, parseJSONLDBlock(raw)...)
	})
	return offers
}

func parseJSONLDBlock(raw string) []StructuredOffer {
	// A block may be a single object or an array of objects.
	var nodes []jsonLDNode
	var single jsonLDNode
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		nodes = append(nodes, single)
	} else {
		var arr []jsonLDNode
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil
		}
		nodes = arr
	}

	var out []StructuredOffer
	for _, n := range nodes {
		out = append(out, extractOffersFromNode(n)...)
	}
	return out
}

func extractOffersFromNode(n jsonLDNode) []StructuredOffer {
	var out []StructuredOffer
	if !typeMentionsProduct(n.Type) && len(n.Graph) == 0 {
		return out
	}
	if len(n.Offers) > 0 {
		out = append(out, parseOffers(n.Offers)...)
	}
	for _, g := range n.Graph {
		out = append(out, extractOffersFromNode(g)...)
	}
	return out
}

func typeMentionsProduct(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.EqualFold(single, "Product")
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil {
		for _, t := range multi {
			if strings.EqualFold(t, "Product") {
				return true
			}
		}
	}
	return false
}

func parseOffers(raw json.RawMessage) []StructuredOffer {
	var single offerNode
	if err := json.Unmarshal(raw, &single); err == nil && len(single.Price) > 0 {
		return []StructuredOffer{offerNodeToStructured(single)}
	}
	var many []offerNode
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]StructuredOffer, 0, len(many))
		for _, o := range many {
			out = append(out, offerNodeToStructured(o))
		}
		return out
	}
	return nil
}

func offerNodeToStructured(o offerNode) StructuredOffer {
	s := StructuredOffer{
		Price:         rawToString(o.Price),
		PriceCurrency: o.PriceCurrency,
	}
	if o.PriceSpecification != nil {
		s.OriginalPrice = rawToString(o.PriceSpecification.Price)
	}
	return s
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		b, _ := json.Marshal(f)
		return string(b)
	}
	return ""
}
