package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricewatch/internal/orchestrator"
)

// BatchHandler wraps batch dispatch and status lookup (§6.1 POST /batch,
// GET /batch/{batch_id}).
type BatchHandler struct {
	runner *orchestrator.BatchRunner
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(runner *orchestrator.BatchRunner) *BatchHandler {
	return &BatchHandler{runner: runner}
}

type createBatchRequest struct {
	MachineIDs []string `json:"machine_ids"`
	Debug      bool     `json:"debug"`
}

type createBatchResponse struct {
	BatchID string `json:"batch_id"`
}

// Create dispatches a batch over the requested machines and returns
// immediately with the batch id; the run itself continues in the background.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.MachineIDs) == 0 {
		http.Error(w, "machine_ids must not be empty", http.StatusBadRequest)
		return
	}

	machineIDs := make([]primitive.ObjectID, 0, len(req.MachineIDs))
	for _, raw := range req.MachineIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			http.Error(w, "invalid machine id: "+raw, http.StatusBadRequest)
			return
		}
		machineIDs = append(machineIDs, id)
	}

	batch, err := h.runner.DispatchAsync(r.Context(), machineIDs, req.Debug)
	if err != nil {
		http.Error(w, "failed to create batch", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(createBatchResponse{BatchID: batch.ID.Hex()})
}

// Get returns the current snapshot of a batch.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batchID, err := primitive.ObjectIDFromHex(vars["batch_id"])
	if err != nil {
		http.Error(w, "invalid batch_id", http.StatusBadRequest)
		return
	}

	batch, err := h.runner.BatchSnapshot(r.Context(), batchID)
	if err != nil {
		http.Error(w, "failed to load batch", http.StatusInternalServerError)
		return
	}
	if batch == nil {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(batch)
}
