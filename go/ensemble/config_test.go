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
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfig_ValidateRejectsInvalidValues(t *testing.T) {
	tests := map[string]struct {
		modify func(*Config)
		want   error
	}{
		"empty chain id":       {func(c *Config) { c.ChainID = "" }, ErrEmptyChainID},
		"empty denom":          {func(c *Config) { c.BondedDenom = "" }, ErrEmptyBondedDenom},
		"zero address length":  {func(c *Config) { c.MaxAddressLength = 0 }, ErrInvalidAddressLength},
		"negative cache size":  {func(c *Config) { c.QueryCacheSize = -1 }, ErrInvalidCacheSize},
		"zero height step":     {func(c *Config) { c.Block.MinHeightIncrement = 0 }, ErrInvalidIncrement},
		"inverted time range":  {func(c *Config) { c.Block.MinTimeIncrement = 10 }, ErrInvalidIncrement},
		"unknown log format":   {func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		"cache may be omitted": {func(c *Config) { c.QueryCacheSize = 0 }, nil},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			test.modify(config)
			if err := config.Validate(); !errors.Is(err, test.want) {
				t.Errorf("unexpected error, want %v, got %v", test.want, err)
			}
		})
	}
}

func TestConfig_UnknownLogLevelIsRejected(t *testing.T) {
	config := DefaultConfig()
	config.Logging.Level = "loud"
	if err := config.Validate(); err == nil {
		t.Errorf("expected unknown log level to be rejected")
	}
}

func TestLoadConfig_ReadsFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ensemble.toml")
	content := `
chain_id = "secret-4"
bonded_denom = "uscrt"

[block]
height = 100
time = 1700000000
min_height_increment = 1
max_height_increment = 3
min_time_increment = 5
max_time_increment = 5
seed = 42

[logging]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("ENSEMBLE_MAX_ADDRESS_LENGTH", "20")
	t.Setenv("ENSEMBLE_BLOCK_FROZEN", "true")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if want, got := "secret-4", config.ChainID; want != got {
		t.Errorf("unexpected chain id, want %s, got %s", want, got)
	}
	if want, got := 20, config.MaxAddressLength; want != got {
		t.Errorf("unexpected max address length, want %d, got %d", want, got)
	}
	if want, got := uint64(100), config.Block.Height; want != got {
		t.Errorf("unexpected height, want %d, got %d", want, got)
	}
	if !config.Block.Frozen {
		t.Errorf("environment override of frozen flag was ignored")
	}
	if want, got := 256, config.QueryCacheSize; want != got {
		t.Errorf("unexpected default cache size, want %d, got %d", want, got)
	}

	block, err := config.Block.NewBlock()
	if err != nil {
		t.Fatalf("failed to create block: %v", err)
	}
	block.Next()
	if want, got := uint64(100), block.Height; want != got {
		t.Errorf("frozen block advanced, want %d, got %d", want, got)
	}
}

func TestLoadConfig_ReportsErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("expected missing file to be reported")
	}

	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("chain_id = "), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected malformed file to be reported")
	}

	t.Setenv("ENSEMBLE_QUERY_CACHE_SIZE", "-5")
	if _, err := LoadConfig(""); !errors.Is(err, ErrInvalidCacheSize) {
		t.Errorf("unexpected error, want %v, got %v", ErrInvalidCacheSize, err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.BondedDenom = ""
	if _, err := New(WithConfig(config)); !errors.Is(err, ErrEmptyBondedDenom) {
		t.Errorf("unexpected error, want %v, got %v", ErrEmptyBondedDenom, err)
	}
}
