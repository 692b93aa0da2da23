package couchbase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/metrics"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = time.Second
)

// casEnvelope is the shape of a read result when the caller asked for the
// CAS token alongside the value.
type casEnvelope struct {
	Value json.RawMessage `json:"value"`
	Cas   interface{}     `json:"cas"`
}

// DocumentManager handles single-document CRUD. Writes are retried a bounded
// number of times with a fixed delay; reads and deletes get one attempt.
type DocumentManager struct {
	buckets    BucketResolver
	maxRetries int
	retryDelay time.Duration
}

// NewDocumentManager creates a document manager with the default retry
// policy (5 retries, 1s apart).
func NewDocumentManager(buckets BucketResolver) *DocumentManager {
	return &DocumentManager{
		buckets:    buckets,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// Get reads one document. Read failures propagate immediately, there is no
// retry. With withCas set, the result is wrapped as {"value": ..., "cas": "..."}
// with the CAS rendered as a string.
func (dm *DocumentManager) Get(key string, withCas bool, bucket string) (json.RawMessage, error) {
	start := time.Now()

	col, err := dm.buckets.ResolveBucket(bucket)
	if err != nil {
		return nil, err
	}

	value, cas, err := col.Get(key)
	metrics.RecordStoreOperation("get", bucket, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("bucket", bucket).
			Msg("Error in getting data from couchbase")
		return nil, fmt.Errorf("error in getting data from couchbase: %w", err)
	}

	if !withCas {
		return value, nil
	}
	return json.Marshal(casEnvelope{
		Value: value,
		Cas:   strconv.FormatUint(uint64(cas), 10),
	})
}

// Add writes a new document with insert-if-absent semantics.
func (dm *DocumentManager) Add(key string, value interface{}, bucket string) (bool, error) {
	return dm.AddWithTTL(key, value, bucket, 0)
}

// AddWithTTL is Add with a document expiry; a zero ttl means no expiry.
// Any failure is retried with a fixed delay until the retry budget is spent.
// The failure type is not inspected before retrying: "already exists" is
// retried like a network fault.
func (dm *DocumentManager) AddWithTTL(key string, value interface{}, bucket string, ttl time.Duration) (bool, error) {
	start := time.Now()

	col, err := dm.buckets.ResolveBucket(bucket)
	if err != nil {
		return false, err
	}

	for attempt := 0; ; attempt++ {
		err := col.Insert(key, value, ttl)
		if err == nil {
			metrics.RecordStoreOperation("add", bucket, nil, time.Since(start))
			return true, nil
		}

		if attempt >= dm.maxRetries {
			metrics.RecordStoreOperation("add", bucket, err, time.Since(start))
			return false, fmt.Errorf("error in adding data to couchbase: %w... %w", err, ErrRetryLimit)
		}

		log.Error().Err(err).Str("key", key).Str("bucket", bucket).
			Msg("Error in adding data to couchbase, retrying")
		metrics.RecordStoreRetry("add", bucket)
		time.Sleep(dm.retryDelay)
	}
}

// Replace overwrites an existing document. A non-zero cas makes the write
// conditional on the stored revision matching it. Same retry policy as Add.
func (dm *DocumentManager) Replace(key string, value interface{}, cas gocb.Cas, bucket string) (string, error) {
	start := time.Now()

	col, err := dm.buckets.ResolveBucket(bucket)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		err := col.Replace(key, value, cas)
		if err == nil {
			metrics.RecordStoreOperation("replace", bucket, nil, time.Since(start))
			return fmt.Sprintf("Data successfully updated to couchbase for key: %s in bucket : %s", key, bucket), nil
		}

		if attempt >= dm.maxRetries {
			metrics.RecordStoreOperation("replace", bucket, err, time.Since(start))
			return "", fmt.Errorf("error in updating data to couchbase: %w... %w", err, ErrRetryLimit)
		}

		log.Error().Err(err).Str("key", key).Str("bucket", bucket).
			Msg("Error in updating data to couchbase, retrying")
		metrics.RecordStoreRetry("replace", bucket)
		time.Sleep(dm.retryDelay)
	}
}

// Remove deletes one document. Single attempt, no retry.
func (dm *DocumentManager) Remove(key, bucket string) (string, error) {
	start := time.Now()

	col, err := dm.buckets.ResolveBucket(bucket)
	if err != nil {
		return "", err
	}

	err = col.Remove(key)
	metrics.RecordStoreOperation("remove", bucket, err, time.Since(start))
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("bucket", bucket).
			Msg("Error in deleting data from couchbase")
		return "", fmt.Errorf("error in deleting data from couchbase: %w", err)
	}

	return fmt.Sprintf("Data successfully deleted from couchbase for key: %s in bucket : %s", key, bucket), nil
}
