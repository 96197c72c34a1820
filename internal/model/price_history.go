package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PriceHistory is an append-only record of one extraction outcome (§3.3).
// No update, no delete: resolving approval clears RequiresApproval and sets
// ApprovalDecision in place (the one sanctioned mutation, §9 Open Question
// on the approval queue), everything else about the row is immutable once
// written.
type PriceHistory struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	MachineID      primitive.ObjectID  `json:"machine_id" bson:"machine_id"`
	Price          *decimal.Decimal    `json:"price" bson:"price"` // nil when extraction found nothing
	Currency       string              `json:"currency" bson:"currency"`
	PreviousPrice  *decimal.Decimal    `json:"previous_price" bson:"previous_price"`
	TierUsed       Tier                `json:"tier_used" bson:"tier_used"`
	SelectorOrPath string              `json:"selector_or_path" bson:"selector_or_path"`
	Confidence     float64             `json:"confidence" bson:"confidence"`

	ValidationStatus ValidationStatus `json:"validation_status" bson:"validation_status"`
	ReasonCode       string           `json:"reason_code,omitempty" bson:"reason_code,omitempty"`

	BatchID          *primitive.ObjectID `json:"batch_id,omitempty" bson:"batch_id,omitempty"`
	RequiresApproval bool                `json:"requires_approval" bson:"requires_approval"`
	ApprovalDecision ApprovalDecision    `json:"approval_decision,omitempty" bson:"approval_decision,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// IsAccepted reports whether this row is eligible to be reflected onto
// Machine.Price per invariant 2 in spec §8: validation PASS and no pending
// approval.
func (h *PriceHistory) IsAccepted() bool {
	return h.ValidationStatus == ValidationPass && !h.RequiresApproval && h.Price != nil
}
