package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/model"
	"pricewatch/internal/store"
)

// ApprovalHandler wraps the pending-approval decision on a PriceHistory row
// (§6.1 POST /approval/{history_id}).
type ApprovalHandler struct {
	store store.Store
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(st store.Store) *ApprovalHandler {
	return &ApprovalHandler{store: st}
}

type approvalRequest struct {
	Decision model.ApprovalDecision `json:"decision"`
}

// Resolve flips requires_approval to false and, on APPROVE, writes the
// history row's price onto the machine (§6.1).
func (h *ApprovalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	historyID, err := primitive.ObjectIDFromHex(vars["history_id"])
	if err != nil {
		http.Error(w, "invalid history_id", http.StatusBadRequest)
		return
	}

	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Decision != model.ApprovalApprove && req.Decision != model.ApprovalReject {
		http.Error(w, "decision must be APPROVE or REJECT", http.StatusBadRequest)
		return
	}

	history, err := h.store.GetPriceHistory(r.Context(), historyID)
	if err != nil {
		http.Error(w, "failed to load price history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		http.Error(w, "price history not found", http.StatusNotFound)
		return
	}

	if err := h.store.ResolveApproval(r.Context(), historyID, req.Decision); err != nil {
		http.Error(w, "failed to resolve approval", http.StatusInternalServerError)
		return
	}

	if req.Decision == model.ApprovalApprove && history.Price != nil {
		if err := h.store.UpdateMachinePrice(r.Context(), history.MachineID, history.Price); err != nil {
			http.Error(w, "approval recorded but failed to update machine price", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
