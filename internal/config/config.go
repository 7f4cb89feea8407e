// Package config loads the wallet configuration from ZLW_ environment
// variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Prefix of every environment variable read by Load.
const Prefix = "ZLW"

// SLIP 44 coin types.
const (
	MainnetCoinType = 133
	TestnetCoinType = 1
)

// NU5 is the consensus branch id of the NU5 network upgrade.
const NU5 = 0xC2D6D0B4

// Config contains all configuration parameters for the CLI.
type Config struct {
	WalletDir string `envconfig:"WALLET_DIR" default:"./data/wallet"`
	Network   string `envconfig:"NETWORK" default:"test"`
	BranchID  uint32 `envconfig:"BRANCH_ID" default:"0xC2D6D0B4"`
	BatchSize uint64 `envconfig:"SYNC_BATCH_SIZE" default:"10000"`

	// Read by sign when --mnemonic is not given.
	Mnemonic   string `envconfig:"MNEMONIC"`
	Passphrase string `envconfig:"PASSPHRASE"`

	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE" default:"stderr"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"30"`
	LogCompress   bool   `envconfig:"LOG_COMPRESS" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Network) {
	case "main", "test":
	default:
		return fmt.Errorf("unknown network %q (want main or test)", c.Network)
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("sync batch size must be positive")
	}
	return nil
}

// CoinType returns the SLIP 44 coin type of the configured network.
func (c *Config) CoinType() uint32 {
	if strings.EqualFold(c.Network, "main") {
		return MainnetCoinType
	}
	return TestnetCoinType
}
