// Package router wires the HTTP control surface (§6.1) onto gorilla/mux.
package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"pricewatch/internal/handler"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	healthHandler *handler.HealthHandler,
	extractHandler *handler.ExtractHandler,
	batchHandler *handler.BatchHandler,
	approvalHandler *handler.ApprovalHandler,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	r.HandleFunc("/extract/{machine_id}", extractHandler.Run).Methods(http.MethodPost)
	r.HandleFunc("/batch", batchHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/batch/{batch_id}", batchHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/approval/{history_id}", approvalHandler.Resolve).Methods(http.MethodPost)

	return r
}
