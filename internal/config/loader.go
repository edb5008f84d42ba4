package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "BACKR_"
	envFileVar = "BACKR_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if BACKR_CONFIG is set
//  3. env (prefix BACKR_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// BACKR_QUEUE_SIZE -> queue_size; underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StorePostgres && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver != StoreMemory && c.StoreDSN == "":
		return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
	case c.LedgerMode != LedgerMock && c.LedgerMode != LedgerHTTP:
		return fmt.Errorf("%w: unknown ledger_mode %q", ErrInvalidConfig, c.LedgerMode)
	case c.LedgerMode == LedgerHTTP && c.LedgerURL == "":
		return fmt.Errorf("%w: ledger_url is required when ledger_mode is http", ErrInvalidConfig)
	case c.SuggestionDefaultLimit < 1:
		return fmt.Errorf("%w: suggestion_default_limit must be at least 1", ErrInvalidConfig)
	case c.SuggestionDefaultLimit > c.SuggestionMaxLimit:
		return fmt.Errorf("%w: suggestion_default_limit exceeds suggestion_max_limit", ErrInvalidConfig)
	case c.SuggestionMaxLimit > HardMaxSuggestionLimit:
		return fmt.Errorf("%w: suggestion_max_limit must not exceed %d", ErrInvalidConfig, HardMaxSuggestionLimit)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	return nil
}
