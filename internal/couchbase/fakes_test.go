package couchbase

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
)

type memDoc struct {
	value json.RawMessage
	cas   gocb.Cas
}

// memCollection is an in-memory Collection with CAS semantics, standing in
// for a live bucket's default collection.
type memCollection struct {
	mu      sync.Mutex
	docs    map[string]memDoc
	nextCas gocb.Cas

	getCalls    int
	insertCalls int
	removeCalls int

	// failInsert makes the next n Insert calls fail with insertErr.
	failInsert int
	insertErr  error
	// failGet fails Get for specific keys.
	failGet map[string]error
}

func newMemCollection() *memCollection {
	return &memCollection{
		docs:    make(map[string]memDoc),
		failGet: make(map[string]error),
	}
}

func (m *memCollection) Get(key string) (json.RawMessage, gocb.Cas, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if err, ok := m.failGet[key]; ok {
		return nil, 0, err
	}
	doc, ok := m.docs[key]
	if !ok {
		return nil, 0, gocb.ErrDocumentNotFound
	}
	return doc.value, doc.cas, nil
}

func (m *memCollection) Insert(key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.failInsert > 0 {
		m.failInsert--
		return m.insertErr
	}
	if _, ok := m.docs[key]; ok {
		return gocb.ErrDocumentExists
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.nextCas++
	m.docs[key] = memDoc{value: raw, cas: m.nextCas}
	return nil
}

func (m *memCollection) Replace(key string, value interface{}, cas gocb.Cas) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return gocb.ErrDocumentNotFound
	}
	if cas != 0 && cas != doc.cas {
		return gocb.ErrCasMismatch
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.nextCas++
	m.docs[key] = memDoc{value: raw, cas: m.nextCas}
	return nil
}

func (m *memCollection) Upsert(key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.nextCas++
	m.docs[key] = memDoc{value: raw, cas: m.nextCas}
	return nil
}

func (m *memCollection) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls++
	if _, ok := m.docs[key]; !ok {
		return gocb.ErrDocumentNotFound
	}
	delete(m.docs, key)
	return nil
}

// stored returns the raw document value, or nil when absent.
func (m *memCollection) stored(key string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil
	}
	return doc.value
}

// memResolver hands out one memCollection per bucket name.
type memResolver struct {
	mu   sync.Mutex
	cols map[string]*memCollection
}

func newMemResolver() *memResolver {
	return &memResolver{cols: make(map[string]*memCollection)}
}

func (r *memResolver) ResolveBucket(name string) (Collection, error) {
	return r.bucket(name), nil
}

func (r *memResolver) bucket(name string) *memCollection {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, ok := r.cols[name]
	if !ok {
		col = newMemCollection()
		r.cols[name] = col
	}
	return col
}

// errResolver fails every bucket resolution.
type errResolver struct {
	err error
}

func (r errResolver) ResolveBucket(name string) (Collection, error) {
	return nil, &ConnectionError{Bucket: name, Err: r.err}
}

// newTestDocumentManager shrinks the retry delay so retry paths run fast.
func newTestDocumentManager(buckets BucketResolver) *DocumentManager {
	dm := NewDocumentManager(buckets)
	dm.retryDelay = time.Millisecond
	return dm
}
