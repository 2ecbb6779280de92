// Package persist implements spec.md §5's durability layer: a snapshot of
// reconstructable friend/channel state plus an append-only mutation log,
// so a restarted node recovers by loading the last snapshot and replaying
// everything recorded after it rather than re-deriving state from a cold
// MoveToken history. Store has two concrete backends, an embedded
// go.etcd.io/bbolt file (boltstore.go) and a shared Postgres instance
// (postgresstore.go), mirroring channeldb's own bolt-by-default,
// postgres-for-clustered-deployments split.
package persist

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
