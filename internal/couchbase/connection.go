package couchbase

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns the process-wide cluster connection and the
// per-bucket handle cache. The cluster is dialed lazily on first demand and
// exactly once; bucket handles are created on first request for a name and
// reused for the process lifetime.
type ConnectionManager struct {
	connectOnce sync.Once
	cluster     *gocb.Cluster
	connectErr  error

	buckets *bucketCache

	mu     sync.Mutex
	closed bool
}

// NewConnectionManager creates a connection manager. No network activity
// happens until Connect or the first bucket resolution.
func NewConnectionManager() *ConnectionManager {
	cm := &ConnectionManager{}
	cm.buckets = newBucketCache(cm.openCollection)
	return cm
}

// requireEnv reads a required configuration value. A missing value is a
// startup defect, not a recoverable error.
func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatal().Str("var", key).Msg("Required Couchbase configuration is not set")
	}
	return v
}

func dialCluster() (*gocb.Cluster, error) {
	connectionURL := requireEnv("COUCHBASE_CONNECTION_URL")
	username := requireEnv("COUCHBASE_USERNAME")
	password := requireEnv("COUCHBASE_PASSWORD")

	log.Info().Str("url", connectionURL).Msg("Connecting to Couchbase cluster")

	cluster, err := gocb.Connect(connectionURL, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	if err := cluster.WaitUntilReady(30*time.Second, nil); err != nil {
		return nil, fmt.Errorf("cluster not ready: %w", err)
	}

	log.Info().Msg("Couchbase cluster connection established")
	return cluster, nil
}

// Connect establishes the cluster connection on first call and is a no-op
// afterwards. Repeated calls return the outcome of the first attempt.
func (cm *ConnectionManager) Connect() error {
	cm.connectOnce.Do(func() {
		cm.cluster, cm.connectErr = dialCluster()
	})
	return cm.connectErr
}

// openCollection derives a default-collection handle for the named bucket,
// dialing the cluster first if that has not happened yet.
func (cm *ConnectionManager) openCollection(name string) (Collection, error) {
	if cm.isClosed() {
		return nil, ErrShutdown
	}

	if err := cm.Connect(); err != nil {
		return nil, err
	}

	bucket := cm.cluster.Bucket(name)
	if err := bucket.WaitUntilReady(10*time.Second, nil); err != nil {
		return nil, fmt.Errorf("bucket %q is not accessible: %w", name, err)
	}

	return &gocbCollection{col: bucket.DefaultCollection()}, nil
}

// ResolveBucket returns the cached collection handle for name, creating and
// caching it on first use.
func (cm *ConnectionManager) ResolveBucket(name string) (Collection, error) {
	return cm.buckets.resolve(name)
}

func (cm *ConnectionManager) isClosed() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.closed
}

// Shutdown closes the cluster connection and drops all cached bucket
// handles. Safe to call more than once; operations issued afterwards fail
// with ErrShutdown.
func (cm *ConnectionManager) Shutdown() error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return nil
	}
	cm.closed = true
	cm.mu.Unlock()

	cm.buckets.clear()

	if cm.cluster != nil {
		log.Info().Msg("Closing Couchbase cluster connection")
		return cm.cluster.Close(nil)
	}
	return nil
}
