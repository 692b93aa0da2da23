package couchbase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/couchbase/gocb/v2"
)

var (
	// ErrEmptyKeys is returned by batch reads when no keys were supplied.
	ErrEmptyKeys = errors.New("array of keys needs to be of length > 0")

	// ErrRetryLimit marks a write failure that survived every retry attempt.
	ErrRetryLimit = errors.New("retry limit reached")

	// ErrInvalidCounterFormat is returned when a counter document holds
	// something other than a number or a numeric string.
	ErrInvalidCounterFormat = errors.New("invalid counter format")

	// ErrShutdown is returned for operations issued after Shutdown.
	ErrShutdown = errors.New("connection manager is shut down")
)

// ConnectionError wraps a cluster or bucket resolution failure. It is never
// retried by this layer.
type ConnectionError struct {
	Bucket string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error in getting bucket connection for %q: %v", e.Bucket, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// BatchError aggregates the per-key failures of a strict batch read. Keys is
// the full requested key set, Errors holds only the keys that failed.
type BatchError struct {
	Keys   []string
	Errors map[string]string
}

func (e *BatchError) Error() string {
	failed := make([]string, 0, len(e.Errors))
	for key := range e.Errors {
		failed = append(failed, key)
	}
	sort.Strings(failed)

	var b strings.Builder
	fmt.Fprintf(&b, "error occurred while fetching documents %v: ", e.Keys)
	for i, key := range failed {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", key, e.Errors[key])
	}
	return b.String()
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gocb.ErrDocumentNotFound)
}

// IsCasMismatch reports whether err means a conditional write lost against a
// concurrent modification.
func IsCasMismatch(err error) bool {
	return errors.Is(err, gocb.ErrCasMismatch)
}

func errIsExists(err error) bool {
	return errors.Is(err, gocb.ErrDocumentExists)
}

// IsValidation reports whether err is a request validation failure rather
// than a store failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyKeys)
}
