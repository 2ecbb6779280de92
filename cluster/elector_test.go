//go:build etcd_integration

package cluster

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestElectorCampaignAndResign requires a real etcd endpoint, supplied via
// ETCD_ENDPOINTS (comma-separated); run with -tags etcd_integration against
// a local etcd, the same way lnd_test.go's `rpctest`-tagged suite requires
// a live btcd/rpctest harness rather than faking one.
func TestElectorCampaignAndResign(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}

	e, err := New(strings.Split(endpoints, ","), "test-resource")
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, e.Campaign(ctx))
	require.NoError(t, e.Resign(ctx))
}
