package api

import (
	"encoding/json"
	"time"

	"stealthcompany.com/docbridge/internal/couchbase"
)

// DocumentService is the slice of the couchbase client the bridge exposes.
type DocumentService interface {
	InitConnection() error
	GetDocument(key string, withCas bool, bucket string) (json.RawMessage, error)
	AddDocument(key string, value interface{}, bucket string) (bool, error)
	AddDocumentWithTTL(key string, value interface{}, bucket string, ttl time.Duration) (bool, error)
	ReplaceDocument(key string, value interface{}, cas uint64, bucket string) (bool, error)
	RemoveDocument(key, bucket string) (string, error)
	GetBatchDocuments(keys []string, withCas bool, bucket string) (map[string]json.RawMessage, error)
	GetBatchDocumentsV2(keys []string, withCas bool, bucket string) (*couchbase.BatchResult, error)
	NextCounterValue(bucket, key string, initial *int64) (string, error)
	NextKey() string
}

// DocumentRequest is the body of the single-document endpoints. Value, Cas
// and TTLSeconds are only read by the operations that use them.
type DocumentRequest struct {
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value,omitempty"`
	Cas        *uint64         `json:"cas,omitempty"`
	WithCas    bool            `json:"withCas"`
	Bucket     string          `json:"bucket"`
	TTLSeconds uint64          `json:"ttlSeconds,omitempty"`
}

// BatchRequest is the body of the batch-read endpoints.
type BatchRequest struct {
	Keys    []string `json:"keys"`
	WithCas bool     `json:"withCas"`
	Bucket  string   `json:"bucket"`
}

// CounterRequest is the body of the counter endpoint.
type CounterRequest struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Initial *int64 `json:"initial,omitempty"`
}
