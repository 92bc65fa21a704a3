// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ensemble

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/logging"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix of all environment variables overriding the
// configuration.
const EnvPrefix = "ENSEMBLE_"

var (
	ErrEmptyChainID         = errors.New("chain id must not be empty")
	ErrEmptyBondedDenom     = errors.New("bonded denomination must not be empty")
	ErrInvalidAddressLength = errors.New("maximum address length must be positive")
	ErrInvalidCacheSize     = errors.New("query cache size must not be negative")
	ErrInvalidIncrement     = errors.New("invalid block increment range")
	ErrInvalidLogFormat     = errors.New("log format must be text or json")
)

// Config holds the parameters of a ContractEnsemble.
type Config struct {
	ChainID          string `toml:"chain_id" env:"CHAIN_ID"`
	BondedDenom      string `toml:"bonded_denom" env:"BONDED_DENOM"`
	MaxAddressLength int    `toml:"max_address_length" env:"MAX_ADDRESS_LENGTH"`
	// QueryCacheSize bounds the number of cached smart query results.
	// Zero disables the cache.
	QueryCacheSize int `toml:"query_cache_size" env:"QUERY_CACHE_SIZE"`

	Block   BlockConfig   `toml:"block" envPrefix:"BLOCK_"`
	Logging LoggingConfig `toml:"logging" envPrefix:"LOG_"`
}

// BlockConfig describes the simulated chain progress. Increments are drawn
// from the inclusive ranges using Seed; equal bounds make them exact.
type BlockConfig struct {
	Height             uint64 `toml:"height" env:"HEIGHT"`
	Time               uint64 `toml:"time" env:"TIME"`
	MinHeightIncrement uint64 `toml:"min_height_increment" env:"MIN_HEIGHT_INCREMENT"`
	MaxHeightIncrement uint64 `toml:"max_height_increment" env:"MAX_HEIGHT_INCREMENT"`
	MinTimeIncrement   uint64 `toml:"min_time_increment" env:"MIN_TIME_INCREMENT"`
	MaxTimeIncrement   uint64 `toml:"max_time_increment" env:"MAX_TIME_INCREMENT"`
	Seed               uint64 `toml:"seed" env:"SEED"`
	Frozen             bool   `toml:"frozen" env:"FROZEN"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:          "ensemble-1",
		BondedDenom:      "uscrt",
		MaxAddressLength: contract.DefaultMaxAddressLength,
		QueryCacheSize:   256,
		Block: BlockConfig{
			Height:             contract.DefaultBlockHeight,
			Time:               contract.DefaultBlockTime,
			MinHeightIncrement: 1,
			MaxHeightIncrement: 1,
			MinTimeIncrement:   5,
			MaxTimeIncrement:   5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a TOML configuration file on top of the defaults and
// applies ENSEMBLE_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChainID == "" {
		return ErrEmptyChainID
	}
	if c.BondedDenom == "" {
		return ErrEmptyBondedDenom
	}
	if c.MaxAddressLength <= 0 {
		return ErrInvalidAddressLength
	}
	if c.QueryCacheSize < 0 {
		return ErrInvalidCacheSize
	}
	if err := c.Block.Validate(); err != nil {
		return fmt.Errorf("block: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *BlockConfig) Validate() error {
	if c.MinHeightIncrement == 0 || c.MinHeightIncrement > c.MaxHeightIncrement {
		return fmt.Errorf("%w: height [%d, %d]", ErrInvalidIncrement, c.MinHeightIncrement, c.MaxHeightIncrement)
	}
	if c.MinTimeIncrement == 0 || c.MinTimeIncrement > c.MaxTimeIncrement {
		return fmt.Errorf("%w: time [%d, %d]", ErrInvalidIncrement, c.MinTimeIncrement, c.MaxTimeIncrement)
	}
	return nil
}

// NewBlock creates the block simulation described by the configuration.
func (c *BlockConfig) NewBlock() (*contract.Block, error) {
	block := contract.NewBlock()
	block.Height = c.Height
	block.Time = c.Time
	heights := contract.Range{Min: c.MinHeightIncrement, Max: c.MaxHeightIncrement}
	times := contract.Range{Min: c.MinTimeIncrement, Max: c.MaxTimeIncrement}
	var err error
	if heights.Min == heights.Max && times.Min == times.Max {
		err = block.ExactIncrements(heights.Min, times.Min)
	} else {
		err = block.RandomIncrements(heights, times, c.Seed)
	}
	if err != nil {
		return nil, err
	}
	if c.Frozen {
		block.Freeze()
	}
	return block, nil
}

func (c *LoggingConfig) Validate() error {
	if _, err := logging.ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return ErrInvalidLogFormat
	}
	return nil
}
