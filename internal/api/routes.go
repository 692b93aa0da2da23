package api

import (
	"github.com/gorilla/mux"

	"stealthcompany.com/docbridge/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router for the bridge.
func SetupRoutes(svc DocumentService) *mux.Router {
	r := mux.NewRouter()

	r.Use(metrics.Middleware)

	h := NewHandlers(svc)

	r.HandleFunc("/connection/init", h.InitConnection).Methods("POST")

	r.HandleFunc("/documents/get", h.GetDocument).Methods("POST")
	r.HandleFunc("/documents/add", h.AddDocument).Methods("POST")
	r.HandleFunc("/documents/replace", h.ReplaceDocument).Methods("POST")
	r.HandleFunc("/documents/remove", h.RemoveDocument).Methods("POST")
	r.HandleFunc("/documents/batch-get", h.GetBatchDocuments).Methods("POST")
	r.HandleFunc("/documents/batch-get-v2", h.GetBatchDocumentsV2).Methods("POST")

	r.HandleFunc("/counter/next", h.NextCounterValue).Methods("POST")
	r.HandleFunc("/keys/next", h.NextKey).Methods("GET")

	r.HandleFunc("/health", Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	return r
}
