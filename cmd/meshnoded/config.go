package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultBoltFilename   = "meshnode.db"
	defaultMetricsAddr    = "localhost:9735"
	defaultStoreBackend   = "bolt"
	defaultConfigFilename = "meshnoded.conf"
)

var defaultDataDir = filepath.Join(defaultAppDataDir(), defaultDataDirname)

// config mirrors lnd's own config struct: one flat jessevdk/go-flags
// struct covering every subsystem, parsed once at startup.
type config struct {
	DataDir  string `long:"datadir" description:"Directory to store the node's persist.Store files in"`
	LogLevel string `long:"loglevel" description:"Logging level for all subsystems"`

	StoreBackend string `long:"store" description:"Durability backend: bolt or postgres"`
	PostgresDSN  string `long:"postgres.dsn" description:"Postgres connection string, required when --store=postgres"`

	MetricsAddr string `long:"metrics.listen" description:"host:port to serve Prometheus metrics on"`

	EtcdEndpoints []string `long:"cluster.etcd" description:"etcd endpoints for leader election; omit to run standalone"`
	ClusterName   string   `long:"cluster.name" description:"resource name this instance campaigns for leadership of"`
}

func defaultConfig() config {
	return config{
		DataDir:      defaultDataDir,
		LogLevel:     defaultLogLevel,
		StoreBackend: defaultStoreBackend,
		MetricsAddr:  defaultMetricsAddr,
		ClusterName:  "meshnoded",
	}
}

// loadConfig parses command-line flags over the defaults, the way lnd's own
// loadConfig does, minus the TOML config-file pre-pass (no ini/toml parser
// appears anywhere in the example corpus, so flags-only is kept rather than
// hand-rolling one).
func loadConfig() (*config, error) {
	cfg := defaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create data directory: %w", err)
	}

	switch strings.ToLower(cfg.StoreBackend) {
	case "bolt":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("--postgres.dsn is required when --store=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown --store backend %q", cfg.StoreBackend)
	}

	return &cfg, nil
}

func defaultAppDataDir() string {
	if dir := os.Getenv("MESHNODE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".meshnode")
}
