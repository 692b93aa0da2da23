package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/couchbase"
)

// Handlers is the thin glue between HTTP and the document service. No
// business logic lives here: bodies are decoded, the service is called, and
// the result or the error message is encoded back.
type Handlers struct {
	svc DocumentService
}

func NewHandlers(svc DocumentService) *Handlers {
	return &Handlers{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses and surfaces the
// error as a descriptive message, the only error shape callers receive.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case couchbase.IsValidation(err):
		status = http.StatusBadRequest
	case couchbase.IsNotFound(err):
		status = http.StatusNotFound
	case couchbase.IsCasMismatch(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to decode JSON request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON format"})
		return false
	}
	return true
}

// InitConnection establishes the cluster connection eagerly. Idempotent.
func (h *Handlers) InitConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InitConnection(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// GetDocument returns the raw stored value, or {value, cas} when withCas is
// set.
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	value, err := h.svc.GetDocument(req.Key, req.WithCas, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

// AddDocument inserts a new document; ttlSeconds sets an expiry.
func (h *Handlers) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		ok  bool
		err error
	)
	if req.TTLSeconds > 0 {
		ok, err = h.svc.AddDocumentWithTTL(req.Key, req.Value, req.Bucket, time.Duration(req.TTLSeconds)*time.Second)
	} else {
		ok, err = h.svc.AddDocument(req.Key, req.Value, req.Bucket)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

// ReplaceDocument overwrites a document, conditionally when cas is given.
func (h *Handlers) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var cas uint64
	if req.Cas != nil {
		cas = *req.Cas
	}

	ok, err := h.svc.ReplaceDocument(req.Key, req.Value, cas, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ok)
}

// RemoveDocument deletes a document and returns a confirmation string.
func (h *Handlers) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.svc.RemoveDocument(req.Key, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// GetBatchDocuments is the strict batch read: it fails if any key failed.
func (h *Handlers) GetBatchDocuments(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	docs, err := h.svc.GetBatchDocuments(req.Keys, req.WithCas, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// GetBatchDocumentsV2 is the partial batch read: per-key failures come back
// in the errors map.
func (h *Handlers) GetBatchDocumentsV2(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.svc.GetBatchDocumentsV2(req.Keys, req.WithCas, req.Bucket)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// NextCounterValue advances or resets the counter at key.
func (h *Handlers) NextCounterValue(w http.ResponseWriter, r *http.Request) {
	var req CounterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	value, err := h.svc.NextCounterValue(req.Bucket, req.Key, req.Initial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": value})
}

// NextKey returns a fresh unique document key.
func (h *Handlers) NextKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": h.svc.NextKey()})
}

// Health is a liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
