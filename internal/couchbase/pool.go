package couchbase

import (
	"sync"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/docbridge/internal/metrics"
)

// bucketCache caches one collection handle per bucket name for the lifetime
// of the process. Lookups take a read lock; a miss opens a handle outside any
// lock and inserts it under the write lock. Concurrent first-time callers may
// each open a handle, but the double-check on insert makes every caller
// converge on whichever handle was cached first, so duplicates are discarded
// after at most one use.
type bucketCache struct {
	mu      sync.RWMutex
	handles map[string]Collection
	open    func(name string) (Collection, error)
}

func newBucketCache(open func(name string) (Collection, error)) *bucketCache {
	return &bucketCache{
		handles: make(map[string]Collection),
		open:    open,
	}
}

func (bc *bucketCache) resolve(name string) (Collection, error) {
	bc.mu.RLock()
	col, ok := bc.handles[name]
	bc.mu.RUnlock()
	if ok {
		return col, nil
	}

	log.Info().Str("bucket", name).Msg("Creating new connection for bucket")

	col, err := bc.open(name)
	if err != nil {
		return nil, &ConnectionError{Bucket: name, Err: err}
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if cached, ok := bc.handles[name]; ok {
		return cached, nil
	}
	bc.handles[name] = col
	metrics.SetBucketPoolSize(len(bc.handles))
	return col, nil
}

func (bc *bucketCache) size() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.handles)
}

func (bc *bucketCache) clear() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.handles = make(map[string]Collection)
	metrics.SetBucketPoolSize(0)
}
