// Package config loads the YAML configuration of a quorum node.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/did"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/snapshot"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string        `yaml:"log_level"`
	Storage     StorageConfig `yaml:"storage"`
	Tolerance   int64         `yaml:"tolerance"`
	Concurrency int           `yaml:"concurrency"`
	CacheSize   int           `yaml:"cache_size"`
	Chains      []ChainConfig `yaml:"chains"`
	BitIndexer  string        `yaml:"bit_indexer"`
	ENSRegistry string        `yaml:"ens_registry"`
}

// StorageConfig selects the document storage. An empty path keeps documents in memory.
type StorageConfig struct {
	Path string `yaml:"path"`
}

type ChainConfig struct {
	CoinType chain.CoinType `yaml:"coin_type"`
	RPC      string         `yaml:"rpc"`
}

// Default returns a configuration with in memory storage and no chains.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		Tolerance:   snapshot.DefaultTolerance,
		Concurrency: sets.DefaultConcurrency,
		CacheSize:   1024,
		ENSRegistry: did.DefaultENSRegistry.Hex(),
	}
}

// Load reads the YAML file at path over the defaults.
//
// QUORUM_STORAGE_PATH and QUORUM_BIT_INDEXER override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	applyEnvOverrides(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("QUORUM_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("QUORUM_BIT_INDEXER"); v != "" {
		c.BitIndexer = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance must not be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1"))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative"))
	}
	seen := make(map[chain.CoinType]bool)
	for i, ch := range c.Chains {
		if seen[ch.CoinType] {
			errs = append(errs, fmt.Errorf("chains[%d]: duplicate coin type %s", i, ch.CoinType))
		}
		seen[ch.CoinType] = true
		if ch.CoinType != chain.ETH && ch.CoinType != chain.CKB {
			errs = append(errs, fmt.Errorf("chains[%d]: unsupported coin type %s", i, ch.CoinType))
		}
		if ch.RPC == "" {
			errs = append(errs, fmt.Errorf("chains[%d]: rpc is required", i))
		}
	}
	if c.ENSRegistry != "" && !common.IsHexAddress(c.ENSRegistry) {
		errs = append(errs, fmt.Errorf("ens_registry: invalid address %q", c.ENSRegistry))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
