package couchbase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/metrics"
)

// counterMaxAttempts bounds the CAS conflict loop. Every failed attempt
// means another caller made progress, so this is only reachable under
// sustained contention on one key.
const counterMaxAttempts = 16

// CounterManager implements a document-backed counter. The counter document
// holds a plain JSON number (legacy documents may hold a numeric string).
type CounterManager struct {
	buckets BucketResolver
}

func NewCounterManager(buckets BucketResolver) *CounterManager {
	return &CounterManager{buckets: buckets}
}

// Next returns the next counter value for key as a decimal string.
//
// With initial set, the counter is forcibly reset to that value regardless
// of prior state. Without it, an existing counter is incremented by one and
// a missing one is created at 1. The increment is conditioned on the CAS
// observed at read time and retried on conflict, so concurrent callers
// cannot lose increments.
func (cm *CounterManager) Next(bucket, key string, initial *int64) (string, error) {
	start := time.Now()

	col, err := cm.buckets.ResolveBucket(bucket)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < counterMaxAttempts; attempt++ {
		value, cas, err := col.Get(key)
		if err != nil {
			if !IsNotFound(err) {
				metrics.RecordStoreOperation("counter", bucket, err, time.Since(start))
				return "", fmt.Errorf("error in reading counter %s: %w", key, err)
			}

			// No counter yet: create it.
			next := int64(1)
			if initial != nil {
				next = *initial
			}
			err := col.Insert(key, next, 0)
			if IsNotFound(err) || errIsExists(err) {
				// Lost the create race; re-read and increment instead.
				continue
			}
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("Error in setting initial counter")
				metrics.RecordStoreOperation("counter", bucket, err, time.Since(start))
				return "", fmt.Errorf("error in setting initial counter: %w", err)
			}

			log.Info().Str("key", key).Int64("value", next).Msg("Initial counter set")
			metrics.RecordStoreOperation("counter", bucket, nil, time.Since(start))
			return strconv.FormatInt(next, 10), nil
		}

		if initial != nil {
			// Forced reset overwrites whatever is stored.
			if err := col.Upsert(key, *initial); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Error in setting initial counter")
				metrics.RecordStoreOperation("counter", bucket, err, time.Since(start))
				return "", fmt.Errorf("error in setting initial counter: %w", err)
			}
			log.Info().Str("key", key).Int64("value", *initial).Msg("Initial counter set")
			metrics.RecordStoreOperation("counter", bucket, nil, time.Since(start))
			return strconv.FormatInt(*initial, 10), nil
		}

		current, err := parseCounter(value)
		if err != nil {
			metrics.RecordStoreOperation("counter", bucket, err, time.Since(start))
			return "", fmt.Errorf("counter %s: %w", key, err)
		}

		next := current + 1
		err = col.Replace(key, next, cas)
		if err != nil {
			if IsCasMismatch(err) || IsNotFound(err) {
				metrics.RecordStoreRetry("counter", bucket)
				continue
			}
			log.Error().Err(err).Str("key", key).Msg("Error in incrementing counter")
			metrics.RecordStoreOperation("counter", bucket, err, time.Since(start))
			return "", fmt.Errorf("error in incrementing counter: %w", err)
		}

		log.Info().Str("key", key).Int64("value", next).Msg("Counter incremented")
		metrics.RecordStoreOperation("counter", bucket, nil, time.Since(start))
		return strconv.FormatInt(next, 10), nil
	}

	return "", fmt.Errorf("counter %s: too many concurrent updates... %w", key, ErrRetryLimit)
}

// parseCounter accepts the two shapes a counter document has ever been
// stored in: a JSON number, or a numeric string. A string that does not
// parse counts as zero; anything else is a format error.
func parseCounter(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, nil
		}
		return parsed, nil
	}

	return 0, ErrInvalidCounterFormat
}
