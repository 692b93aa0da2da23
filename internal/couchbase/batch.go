package couchbase

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/metrics"
)

// BatchMode selects how per-key read failures are reported.
type BatchMode int

const (
	// BatchStrict fails the whole call if any key fails; successes are
	// discarded.
	BatchStrict BatchMode = iota
	// BatchPartial reports per-key failures alongside the successes and
	// never fails the call over them.
	BatchPartial
)

// BatchResult holds the outcome of a batch read. Docs and Errors are keyed
// by document key, are disjoint, and together cover the requested key set.
type BatchResult struct {
	Docs   map[string]json.RawMessage `json:"docs"`
	Errors map[string]string          `json:"errors"`
}

// BatchManager reads many documents in one call, one single-attempt read per
// key in the order supplied.
type BatchManager struct {
	buckets BucketResolver
}

func NewBatchManager(buckets BucketResolver) *BatchManager {
	return &BatchManager{buckets: buckets}
}

// GetMany reads every key from the bucket. Per-key reads are never retried.
// In strict mode any failed key turns the whole call into a BatchError that
// names every failed key; in partial mode both maps are always returned.
// With withCas set, each document is wrapped as {"value": ..., "cas": N}.
func (bm *BatchManager) GetMany(keys []string, withCas bool, bucket string, mode BatchMode) (*BatchResult, error) {
	start := time.Now()

	col, err := bm.buckets.ResolveBucket(bucket)
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, ErrEmptyKeys
	}

	result := &BatchResult{
		Docs:   make(map[string]json.RawMessage, len(keys)),
		Errors: make(map[string]string),
	}

	for _, key := range keys {
		value, cas, err := col.Get(key)
		if err != nil {
			result.Errors[key] = err.Error()
			continue
		}

		if withCas {
			wrapped, err := json.Marshal(casEnvelope{Value: value, Cas: uint64(cas)})
			if err != nil {
				result.Errors[key] = err.Error()
				continue
			}
			result.Docs[key] = wrapped
		} else {
			result.Docs[key] = value
		}
	}

	if mode == BatchStrict && len(result.Errors) > 0 {
		log.Error().Str("bucket", bucket).Int("failed", len(result.Errors)).
			Msg("Some documents failed to fetch")
		err := &BatchError{Keys: keys, Errors: result.Errors}
		metrics.RecordStoreOperation("batch_get", bucket, err, time.Since(start))
		return nil, err
	}

	metrics.RecordStoreOperation("batch_get", bucket, nil, time.Since(start))
	log.Debug().Str("bucket", bucket).Int("fetched", len(result.Docs)).
		Msg("Batch fetch completed")
	return result, nil
}
