// Command meshnoded runs one credit-mesh node: it owns a funder.Funder, a
// persist.Store, and an appif.Server dispatching AppRequests from local
// application connections, the same loadConfig -> logging -> subsystem ->
// serve shape lnd.go's lndMain uses for lnd itself.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creditmesh/meshnode/appif"
	"github.com/creditmesh/meshnode/ccrypto"
	"github.com/creditmesh/meshnode/cluster"
	"github.com/creditmesh/meshnode/funder"
	"github.com/creditmesh/meshnode/invoice"
	"github.com/creditmesh/meshnode/persist"
)

func main() {
	if err := meshnodedMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// meshnodedMain is the real entry point; kept separate from main so
// deferred cleanup always runs, mirroring lnd.go's lndMain/main split.
func meshnodedMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	useLoggers()
	setLogLevels(cfg.LogLevel)
	mshdLog.Infof("starting meshnoded, datadir=%s store=%s", cfg.DataDir, cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	priv, err := loadOrCreateIdentity(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	signer := ccrypto.NewLocalSigner()
	signer.AddKey(priv)

	invoices := invoice.NewBook()
	fd := funder.New(priv.PubKey(), signer, invoices)

	lastSeq, err := recover_(fd, store)
	if err != nil {
		return fmt.Errorf("recover state: %w", err)
	}
	mshdLog.Infof("recovered at mutation sequence %d", lastSeq)

	if len(cfg.EtcdEndpoints) > 0 {
		elector, err := cluster.New(cfg.EtcdEndpoints, cfg.ClusterName)
		if err != nil {
			return fmt.Errorf("connect to etcd: %w", err)
		}
		defer elector.Close()

		mshdLog.Infof("campaigning for leadership of %s", cfg.ClusterName)
		if err := elector.Campaign(ctx); err != nil {
			return fmt.Errorf("campaign for leadership: %w", err)
		}
		mshdLog.Infof("elected leader for %s", cfg.ClusterName)

		go func() {
			<-elector.Done()
			mshdLog.Errorf("lost etcd session, shutting down")
			cancel()
		}()
	}

	srv := appif.NewServer(fd, store, invoices, lastSeq)
	go srv.Run(ctx)

	go serveMetrics(fd, cfg.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		mshdLog.Infof("received shutdown signal")
	case <-ctx.Done():
	}
	cancel()
	return nil
}

func openStore(ctx context.Context, cfg *config) (persist.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return persist.OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return persist.OpenBolt(cfg.DataDir)
	}
}

// recover_ implements spec.md §5's "load snapshot, replay mutations since"
// sequence and returns the sequence recovery left off at.
func recover_(fd *funder.Funder, store persist.Store) (uint64, error) {
	snap, ok, err := store.LoadSnapshot()
	if err != nil {
		return 0, err
	}
	seq := uint64(0)
	if ok {
		fd.Restore(snap)
		seq = snap.Sequence
	}
	err = store.ReplayMutations(seq, func(replaySeq uint64, m persist.Mutation) error {
		seq = replaySeq
		return fd.ApplyMutation(m)
	})
	return seq, err
}

func serveMetrics(fd *funder.Funder, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(fd.Metrics.Registry, promhttp.HandlerOpts{}))
	mshdLog.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		mshdLog.Errorf("metrics server: %v", err)
	}
}
