package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Machine is the input record the core extracts a price for. Everything but
// Price and LearnedSelectors is owned and mutated externally (§3.1).
type Machine struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	ProductURL     string             `json:"product_url" bson:"product_url"`
	Price          *decimal.Decimal   `json:"price" bson:"price"` // last accepted price; nil before first extraction
	Brand          string             `json:"brand,omitempty" bson:"brand,omitempty"`
	Category       string             `json:"category,omitempty" bson:"category,omitempty"`
	VariantAttrs   map[string]string  `json:"variant_attributes,omitempty" bson:"variant_attributes,omitempty"`

	// LearnedSelectors is keyed by registrable domain. At most one entry per
	// domain; writes replace the existing entry for that domain (§3.1 invariant).
	LearnedSelectors map[string]LearnedSelector `json:"learned_selectors,omitempty" bson:"learned_selectors,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// LearnedSelector records a selector previously proven to extract the
// correct price for one (machine, domain) pair, for fast reuse (C3 tier 1).
type LearnedSelector struct {
	Selector        string          `json:"selector" bson:"selector"`
	LastSuccessAt   time.Time       `json:"last_success_at" bson:"last_success_at"`
	Confidence      float64         `json:"confidence" bson:"confidence"`
	PriceAtLearning decimal.Decimal `json:"price_at_learning" bson:"price_at_learning"`
	LearnedVia      Tier            `json:"learned_via" bson:"learned_via"`
	Reasoning       string          `json:"reasoning,omitempty" bson:"reasoning,omitempty"`
}

// PreviousPrice reads the machine's last accepted price, or nil if none.
func (m *Machine) PreviousPrice() *decimal.Decimal {
	return m.Price
}

// LearnedSelectorFor returns m.LearnedSelectors[domain] and whether it exists.
func (m *Machine) LearnedSelectorFor(domain string) (LearnedSelector, bool) {
	if m.LearnedSelectors == nil {
		return LearnedSelector{}, false
	}
	sel, ok := m.LearnedSelectors[domain]
	return sel, ok
}
