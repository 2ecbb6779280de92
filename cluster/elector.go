// Package cluster lets a redundant pair of meshnoded instances share one
// persist.Store safely: spec.md §5 requires exactly one writer against the
// database at a time, and when that store is the shared Postgres backend
// (rather than an embedded, single-process bbolt file) two instances could
// otherwise race to append mutations. Elector uses an etcd session lock so
// only the campaign winner runs its appif.Server loop.
package cluster

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// DefaultSessionTTLSeconds bounds how long a leader may be unreachable
// before its lock is considered abandoned and another instance may take
// over.
const DefaultSessionTTLSeconds = 10

// Elector campaigns for exclusive ownership of one named resource (in
// practice, one meshnoded deployment's persist.Store) under an etcd prefix.
type Elector struct {
	client  *clientv3.Client
	session *concurrency.Session
	mutex   *concurrency.Mutex
	key     string
}

// New dials etcd at the given endpoints and opens a session scoped to
// resource, e.g. "meshnoded/mainnet".
func New(endpoints []string, resource string) (*Elector, error) {
	client, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, fmt.Errorf("cluster: dial etcd: %w", err)
	}
	session, err := concurrency.NewSession(client, concurrency.WithTTL(DefaultSessionTTLSeconds))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("cluster: open session: %w", err)
	}
	key := "meshnode/leader/" + resource
	return &Elector{
		client:  client,
		session: session,
		mutex:   concurrency.NewMutex(session, key),
		key:     key,
	}, nil
}

// Campaign blocks until this instance holds the lock, or ctx is canceled.
// Call it before starting an appif.Server against a shared store.
func (e *Elector) Campaign(ctx context.Context) error {
	if err := e.mutex.Lock(ctx); err != nil {
		return fmt.Errorf("cluster: campaign for %s: %w", e.key, err)
	}
	return nil
}

// Done is closed when the etcd session backing this instance's lease
// expires, e.g. a lost connection -- the caller must stop writing to the
// shared store and either re-campaign or shut down.
func (e *Elector) Done() <-chan struct{} {
	return e.session.Done()
}

// Resign releases the lock voluntarily, e.g. during a graceful shutdown so
// a standby can take over without waiting out the session TTL.
func (e *Elector) Resign(ctx context.Context) error {
	return e.mutex.Unlock(ctx)
}

// Close releases the etcd session and closes the underlying client.
func (e *Elector) Close() error {
	if err := e.session.Close(); err != nil {
		e.client.Close()
		return err
	}
	return e.client.Close()
}
