package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/orchestrator"
)

// ExtractHandler wraps single-machine extraction (§6.1 POST /extract/{machine_id}).
type ExtractHandler struct {
	extractor *orchestrator.Extractor
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(extractor *orchestrator.Extractor) *ExtractHandler {
	return &ExtractHandler{extractor: extractor}
}

type extractResponse struct {
	Success          bool    `json:"success"`
	NewPrice         *string `json:"new_price"`
	OldPrice         *string `json:"old_price"`
	TierUsed         string  `json:"tier_used,omitempty"`
	RequiresApproval bool    `json:"requires_approval"`
	Reason           string  `json:"reason,omitempty"`
}

// Run handles a single-machine extraction, blocking until the per-machine
// deadline is reached or the cascade finishes (§6.1, §5).
func (h *ExtractHandler) Run(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	machineID, err := primitive.ObjectIDFromHex(vars["machine_id"])
	if err != nil {
		http.Error(w, "invalid machine_id", http.StatusBadRequest)
		return
	}

	debug := r.URL.Query().Get("debug") == "true"

	result, err := h.extractor.RunExtraction(r.Context(), machineID, nil, debug)
	if err != nil {
		if errors.Is(err, orchestrator.ErrMachineNotFound) {
			http.Error(w, "machine not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := extractResponse{Success: result.Success, Reason: result.Reason}
	if result.History != nil {
		resp.TierUsed = string(result.History.TierUsed)
		resp.RequiresApproval = result.History.RequiresApproval
		if result.History.Price != nil {
			s := result.History.Price.String()
			resp.NewPrice = &s
		}
		if result.History.PreviousPrice != nil {
			s := result.History.PreviousPrice.String()
			resp.OldPrice = &s
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
