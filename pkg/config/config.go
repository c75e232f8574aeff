// Package config provides a reusable loader for ledgermesh configuration
// files and environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"ledgermesh/pkg/utils"
)

// Config is the unified configuration for a ledgermesh node. Its fields map
// onto the YAML keys Load reads from default.yaml (and an optional <env>.yaml)
// found in cmd/config or config.
type Config struct {
	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	Ledger struct {
		// MintAuthorities are DIDs granted wallet.mint authority at genesis.
		// MAX_EVENT_SIZE and NONCE_WINDOW are not configurable here: they are
		// named constants in core (core.MaxEventSize, core.NonceWindow) so
		// that every node enforcing the same log agrees on them without a
		// config round-trip.
		MintAuthorities []string `mapstructure:"mint_authorities" json:"mint_authorities"`
	} `mapstructure:"ledger" json:"ledger"`

	Sync struct {
		MaxEnvelopeBytes int `mapstructure:"max_envelope_bytes" json:"max_envelope_bytes"`
		MaxRangeLimit    int `mapstructure:"max_range_limit" json:"max_range_limit"`
		MaxRangeBytes    int `mapstructure:"max_range_bytes" json:"max_range_bytes"`
		MaxSnapshotBytes int `mapstructure:"max_snapshot_bytes" json:"max_snapshot_bytes"`
	} `mapstructure:"sync" json:"sync"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	API struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"api" json:"api"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	applyDefaults(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LEDGERMESH_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LEDGERMESH_ENV", ""))
}

// applyDefaults fills in zero-valued fields the YAML or environment left
// unset, so a node can start from bare defaults in tests and examples.
func applyDefaults(c *Config) {
	if c.Network.ListenAddr == "" {
		c.Network.ListenAddr = "/ip4/0.0.0.0/tcp/4001"
	}
	if c.Network.DiscoveryTag == "" {
		c.Network.DiscoveryTag = "ledgermesh-sync"
	}
	if c.Sync.MaxEnvelopeBytes == 0 {
		c.Sync.MaxEnvelopeBytes = 256 * 1024
	}
	if c.Sync.MaxRangeLimit == 0 {
		c.Sync.MaxRangeLimit = 500
	}
	if c.Sync.MaxRangeBytes == 0 {
		c.Sync.MaxRangeBytes = 4 * 1024 * 1024
	}
	if c.Sync.MaxSnapshotBytes == 0 {
		c.Sync.MaxSnapshotBytes = 32 * 1024 * 1024
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./data/ledgermesh"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
