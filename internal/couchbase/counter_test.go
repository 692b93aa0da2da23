package couchbase

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
)

func int64p(v int64) *int64 {
	return &v
}

func TestCounterFreshKey(t *testing.T) {
	cm := NewCounterManager(newMemResolver())

	got, err := cm.Next("default", "ctr", nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "1" {
		t.Errorf("Expected \"1\" on a fresh key, got %q", got)
	}

	got, err = cm.Next("default", "ctr", nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "2" {
		t.Errorf("Expected \"2\" on the second call, got %q", got)
	}
}

func TestCounterFreshKeyWithInitial(t *testing.T) {
	cm := NewCounterManager(newMemResolver())

	got, err := cm.Next("default", "ctr", int64p(100))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "100" {
		t.Errorf("Expected \"100\", got %q", got)
	}
}

func TestCounterResetRegardlessOfPriorState(t *testing.T) {
	cm := NewCounterManager(newMemResolver())

	for i := 0; i < 3; i++ {
		if _, err := cm.Next("default", "ctr", nil); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}

	got, err := cm.Next("default", "ctr", int64p(42))
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if got != "42" {
		t.Errorf("Expected \"42\" after reset, got %q", got)
	}

	got, err = cm.Next("default", "ctr", nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "43" {
		t.Errorf("Expected \"43\" after reset, got %q", got)
	}
}

func TestCounterParsesNumericString(t *testing.T) {
	res := newMemResolver()
	if err := res.bucket("default").Upsert("ctr", "7"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	cm := NewCounterManager(res)

	got, err := cm.Next("default", "ctr", nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "8" {
		t.Errorf("Expected \"8\" from a numeric string counter, got %q", got)
	}
}

// A string that does not parse counts as zero, so the next value is 1.
func TestCounterUnparseableStringCountsAsZero(t *testing.T) {
	res := newMemResolver()
	if err := res.bucket("default").Upsert("ctr", "not-a-number"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	cm := NewCounterManager(res)

	got, err := cm.Next("default", "ctr", nil)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "1" {
		t.Errorf("Expected \"1\", got %q", got)
	}
}

func TestCounterInvalidFormat(t *testing.T) {
	res := newMemResolver()
	if err := res.bucket("default").Upsert("ctr", json.RawMessage(`{"nested":true}`)); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	cm := NewCounterManager(res)

	_, err := cm.Next("default", "ctr", nil)
	if !errors.Is(err, ErrInvalidCounterFormat) {
		t.Errorf("Expected invalid counter format error, got %v", err)
	}
}

// Concurrent callers must not lose increments: after n successful calls from
// a fresh key the returned values are exactly 1..n.
func TestCounterConcurrentIncrements(t *testing.T) {
	res := newMemResolver()
	cm := NewCounterManager(res)

	const n = 8
	results := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cm.Next("default", "ctr", nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Call %d failed: %v", i, errs[i])
		}
		if seen[results[i]] {
			t.Errorf("Duplicate counter value %q: an increment was lost", results[i])
		}
		seen[results[i]] = true
	}
	for v := 1; v <= n; v++ {
		if !seen[strconv.Itoa(v)] {
			t.Errorf("Missing counter value %d", v)
		}
	}
}

func TestCounterBucketResolutionFailure(t *testing.T) {
	cm := NewCounterManager(errResolver{err: errors.New("cluster unreachable")})

	_, err := cm.Next("default", "ctr", nil)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Expected a ConnectionError, got %v", err)
	}
}
