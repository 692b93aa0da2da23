package couchbase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func seedBucket(t *testing.T, res *memResolver, bucket string, docs map[string]string) {
	t.Helper()
	col := res.bucket(bucket)
	for key, value := range docs {
		if err := col.Upsert(key, json.RawMessage(value)); err != nil {
			t.Fatalf("Failed to seed %s: %v", key, err)
		}
	}
}

func TestGetManyEmptyKeys(t *testing.T) {
	bm := NewBatchManager(newMemResolver())

	for _, mode := range []BatchMode{BatchStrict, BatchPartial} {
		_, err := bm.GetMany(nil, false, "default", mode)
		if !errors.Is(err, ErrEmptyKeys) {
			t.Errorf("mode %v: expected empty-keys validation error, got %v", mode, err)
		}
		if !IsValidation(err) {
			t.Errorf("mode %v: expected a validation class error", mode)
		}
	}
}

func TestGetManyStrictAllPresent(t *testing.T) {
	res := newMemResolver()
	seedBucket(t, res, "default", map[string]string{
		"k1": `{"a":1}`,
		"k2": `{"b":2}`,
		"k3": `"plain"`,
	})
	bm := NewBatchManager(res)
	dm := newTestDocumentManager(res)

	keys := []string{"k1", "k2", "k3"}
	result, err := bm.GetMany(keys, false, "default", BatchStrict)
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(result.Docs) != len(keys) {
		t.Fatalf("Expected %d docs, got %d", len(keys), len(result.Docs))
	}
	if len(result.Errors) != 0 {
		t.Fatalf("Expected no errors, got %v", result.Errors)
	}

	// The batch must equal the union of individual reads.
	for _, key := range keys {
		single, err := dm.Get(key, false, "default")
		if err != nil {
			t.Fatalf("Single Get(%s) failed: %v", key, err)
		}
		if string(result.Docs[key]) != string(single) {
			t.Errorf("Batch result for %s = %s, single get = %s", key, result.Docs[key], single)
		}
	}
}

func TestGetManyStrictWithMissingKeys(t *testing.T) {
	res := newMemResolver()
	seedBucket(t, res, "default", map[string]string{"k1": `1`})
	bm := NewBatchManager(res)

	_, err := bm.GetMany([]string{"k1", "missing-a", "missing-b"}, false, "default", BatchStrict)
	if err == nil {
		t.Fatal("Expected strict batch to fail with missing keys")
	}

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Expected a BatchError, got %T: %v", err, err)
	}
	for _, missing := range []string{"missing-a", "missing-b"} {
		if _, ok := batchErr.Errors[missing]; !ok {
			t.Errorf("Expected %s in the error map", missing)
		}
		if !strings.Contains(err.Error(), missing) {
			t.Errorf("Expected failure message to name %s, got %q", missing, err.Error())
		}
	}
	if _, ok := batchErr.Errors["k1"]; ok {
		t.Error("Successful key must not appear in the error map")
	}
}

func TestGetManyPartial(t *testing.T) {
	res := newMemResolver()
	seedBucket(t, res, "default", map[string]string{"k1": `1`, "k2": `2`})
	bm := NewBatchManager(res)

	keys := []string{"k1", "k2", "missing-a", "missing-b"}
	result, err := bm.GetMany(keys, false, "default", BatchPartial)
	if err != nil {
		t.Fatalf("Partial batch must not fail on per-key errors: %v", err)
	}

	// Docs and errors are disjoint and together cover the key set exactly.
	if len(result.Docs)+len(result.Errors) != len(keys) {
		t.Fatalf("Expected %d entries total, got docs=%d errors=%d",
			len(keys), len(result.Docs), len(result.Errors))
	}
	for _, key := range keys {
		_, inDocs := result.Docs[key]
		_, inErrors := result.Errors[key]
		if inDocs == inErrors {
			t.Errorf("Key %s: expected exactly one of docs/errors, got docs=%v errors=%v",
				key, inDocs, inErrors)
		}
	}
}

func TestGetManyWithCas(t *testing.T) {
	res := newMemResolver()
	seedBucket(t, res, "default", map[string]string{"k1": `{"a":1}`})
	bm := NewBatchManager(res)

	result, err := bm.GetMany([]string{"k1"}, true, "default", BatchStrict)
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
		Cas   uint64          `json:"cas"`
	}
	if err := json.Unmarshal(result.Docs["k1"], &envelope); err != nil {
		t.Fatalf("Failed to decode cas envelope: %v", err)
	}
	if string(envelope.Value) != `{"a":1}` {
		t.Errorf("Expected value {\"a\":1}, got %s", envelope.Value)
	}
	if envelope.Cas == 0 {
		t.Error("Expected a non-zero cas")
	}
}

func TestGetManyPreservesInputOrder(t *testing.T) {
	res := newMemResolver()
	col := res.bucket("default")
	bm := NewBatchManager(res)

	var keys []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		keys = append(keys, key)
		if err := col.Upsert(key, i); err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
	}
	before := col.getCalls

	result, err := bm.GetMany(keys, false, "default", BatchStrict)
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(result.Docs) != len(keys) {
		t.Fatalf("Expected %d docs, got %d", len(keys), len(result.Docs))
	}
	if got := col.getCalls - before; got != len(keys) {
		t.Errorf("Expected one single-attempt read per key (%d), got %d", len(keys), got)
	}
}

func TestGetManyBucketResolutionFailure(t *testing.T) {
	bm := NewBatchManager(errResolver{err: errors.New("cluster unreachable")})

	_, err := bm.GetMany([]string{"k1"}, false, "default", BatchPartial)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected a ConnectionError, got %v", err)
	}
}
