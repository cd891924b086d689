package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/andreyvit/okv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type config struct {
	Backend           string        `mapstructure:"backend"`
	Path              string        `mapstructure:"path"`
	Verbose           bool          `mapstructure:"verbose"`
	CompressThreshold int           `mapstructure:"compress_threshold"`
	Bucket            string        `mapstructure:"bucket"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

const (
	backendBolt   = "bolt"
	backendSQLite = "sqlite"
	backendPebble = "pebble"
	backendMemory = "memory"
)

func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (YAML, TOML or JSON)")
	flags.String("backend", backendBolt, "storage backend: bolt, sqlite, pebble or memory")
	flags.String("path", "okv.db", "database file (bolt, sqlite) or directory (pebble)")
	flags.BoolP("verbose", "v", false, "log every operation to stderr")
	flags.Int("compress-threshold", 0, "zstd-compress values longer than this many bytes (0 = never)")
	flags.String("bucket", "", "bolt bucket name")
	flags.Duration("timeout", 5*time.Second, "how long to wait for a locked database")
}

func loadConfig(flags *pflag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix("OKV")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"backend", "path", "verbose", "compress-threshold", "bucket", "timeout"} {
		if err := v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name)); err != nil {
			return nil, err
		}
	}

	if file, _ := flags.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else if file := os.Getenv("OKV_CONFIG"); file != "" {
		v.SetConfigFile(file)
	}
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Backend = strings.ToLower(cfg.Backend)
	return &cfg, nil
}

func (cfg *config) logger() *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (cfg *config) storeOptions() okv.Options {
	return okv.Options{
		Logger:            cfg.logger(),
		Verbose:           cfg.Verbose,
		CompressThreshold: cfg.CompressThreshold,
	}
}

func (cfg *config) openBackend() (okv.Backend, error) {
	switch cfg.Backend {
	case backendBolt:
		return okv.OpenBolt(cfg.Path, okv.BoltOptions{Bucket: cfg.Bucket, Timeout: cfg.Timeout})
	case backendSQLite:
		return okv.OpenSQLite(cfg.Path, okv.SQLiteOptions{BusyTimeout: cfg.Timeout})
	case backendPebble:
		return okv.OpenPebble(cfg.Path, okv.PebbleOptions{Logger: cfg.logger()})
	case backendMemory:
		return okv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (cfg *config) openStore() (*okv.Store, error) {
	b, err := cfg.openBackend()
	if err != nil {
		return nil, err
	}
	return okv.New(b, cfg.storeOptions()), nil
}
