package couchbase

import (
	"encoding/json"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/google/uuid"
)

// Client is the facade the call bridge talks to. It orchestrates the
// connection manager and the document, batch and counter accessors.
type Client struct {
	conns    *ConnectionManager
	docs     *DocumentManager
	batch    *BatchManager
	counters *CounterManager
}

// NewClient creates a client. The cluster connection is established lazily
// on the first operation (or eagerly via InitConnection).
func NewClient() *Client {
	conns := NewConnectionManager()
	return &Client{
		conns:    conns,
		docs:     NewDocumentManager(conns),
		batch:    NewBatchManager(conns),
		counters: NewCounterManager(conns),
	}
}

// InitConnection eagerly establishes the process-wide cluster connection.
// Idempotent.
func (c *Client) InitConnection() error {
	return c.conns.Connect()
}

// Shutdown closes the cluster connection and all cached bucket handles.
func (c *Client) Shutdown() error {
	return c.conns.Shutdown()
}

// GetDocument returns the raw stored value, or a {value, cas} envelope when
// withCas is set.
func (c *Client) GetDocument(key string, withCas bool, bucket string) (json.RawMessage, error) {
	return c.docs.Get(key, withCas, bucket)
}

// AddDocument inserts a new document.
func (c *Client) AddDocument(key string, value interface{}, bucket string) (bool, error) {
	return c.docs.Add(key, value, bucket)
}

// AddDocumentWithTTL inserts a new document that expires after ttl.
func (c *Client) AddDocumentWithTTL(key string, value interface{}, bucket string, ttl time.Duration) (bool, error) {
	return c.docs.AddWithTTL(key, value, bucket, ttl)
}

// ReplaceDocument overwrites an existing document; a non-zero cas makes the
// write conditional.
func (c *Client) ReplaceDocument(key string, value interface{}, cas uint64, bucket string) (bool, error) {
	if _, err := c.docs.Replace(key, value, gocb.Cas(cas), bucket); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDocument deletes a document and returns a human-readable
// confirmation.
func (c *Client) RemoveDocument(key, bucket string) (string, error) {
	return c.docs.Remove(key, bucket)
}

// GetBatchDocuments reads all keys and fails if any of them failed.
func (c *Client) GetBatchDocuments(keys []string, withCas bool, bucket string) (map[string]json.RawMessage, error) {
	result, err := c.batch.GetMany(keys, withCas, bucket, BatchStrict)
	if err != nil {
		return nil, err
	}
	return result.Docs, nil
}

// GetBatchDocumentsV2 reads all keys and reports per-key failures alongside
// the successes instead of failing the call.
func (c *Client) GetBatchDocumentsV2(keys []string, withCas bool, bucket string) (*BatchResult, error) {
	return c.batch.GetMany(keys, withCas, bucket, BatchPartial)
}

// NextCounterValue advances (or resets, when initial is given) the counter
// stored at key.
func (c *Client) NextCounterValue(bucket, key string, initial *int64) (string, error) {
	return c.counters.Next(bucket, key, initial)
}

// NextKey returns a fresh globally unique document key.
func (c *Client) NextKey() string {
	return uuid.NewString()
}
