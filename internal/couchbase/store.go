package couchbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// operationTimeout is applied to every individual store call. It is a fixed
// constant, independent of any caller-supplied deadline.
const operationTimeout = 120 * time.Second

// Collection is the subset of bucket operations this layer issues. The live
// implementation wraps a gocb collection; tests substitute an in-memory one.
type Collection interface {
	Get(key string) (json.RawMessage, gocb.Cas, error)
	Insert(key string, value interface{}, ttl time.Duration) error
	Replace(key string, value interface{}, cas gocb.Cas) error
	Upsert(key string, value interface{}) error
	Remove(key string) error
}

// gocbCollection adapts a bucket's default collection to the Collection
// interface, applying the fixed operation timeout to every call.
type gocbCollection struct {
	col *gocb.Collection
}

func (c *gocbCollection) Get(key string) (json.RawMessage, gocb.Cas, error) {
	res, err := c.col.Get(key, &gocb.GetOptions{Timeout: operationTimeout})
	if err != nil {
		return nil, 0, err
	}

	var raw json.RawMessage
	if err := res.Content(&raw); err != nil {
		return nil, 0, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return raw, res.Cas(), nil
}

func (c *gocbCollection) Insert(key string, value interface{}, ttl time.Duration) error {
	_, err := c.col.Insert(key, value, &gocb.InsertOptions{
		Timeout: operationTimeout,
		Expiry:  ttl,
	})
	return err
}

func (c *gocbCollection) Replace(key string, value interface{}, cas gocb.Cas) error {
	// A zero CAS makes the write unconditional.
	_, err := c.col.Replace(key, value, &gocb.ReplaceOptions{
		Timeout: operationTimeout,
		Cas:     cas,
	})
	return err
}

func (c *gocbCollection) Upsert(key string, value interface{}) error {
	_, err := c.col.Upsert(key, value, &gocb.UpsertOptions{Timeout: operationTimeout})
	return err
}

func (c *gocbCollection) Remove(key string) error {
	_, err := c.col.Remove(key, &gocb.RemoveOptions{Timeout: operationTimeout})
	return err
}

// BucketResolver yields the collection handle for a named bucket. Implemented
// by ConnectionManager.
type BucketResolver interface {
	ResolveBucket(name string) (Collection, error)
}
