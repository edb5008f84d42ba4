// Package config defines service configuration and its loading.
//
// Values are layered defaults -> YAML file (BACKR_CONFIG) -> BACKR_* env vars.
package config

import (
	"runtime"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Ledger modes.
const (
	LedgerMock = "mock"
	LedgerHTTP = "http"
)

// HardMaxSuggestionLimit bounds suggestion_max_limit.
const HardMaxSuggestionLimit = 10

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the entity store: memory, postgres or sqlite.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`
	// SeedFile is a YAML fixture loaded into the memory store at startup.
	SeedFile string `koanf:"seed_file"`

	LedgerMode        string  `koanf:"ledger_mode"`
	LedgerURL         string  `koanf:"ledger_url"`
	LedgerToken       string  `koanf:"ledger_token"`
	LedgerTimeoutMS   int     `koanf:"ledger_timeout_ms"`
	LedgerRatePerSec  float64 `koanf:"ledger_rate_per_sec"`
	LedgerMaxFailures int     `koanf:"ledger_max_failures"`

	SuggestionDefaultLimit int `koanf:"suggestion_default_limit"`
	SuggestionMaxLimit     int `koanf:"suggestion_max_limit"`
	SuggestionTimeoutMS    int `koanf:"suggestion_timeout_ms"`

	// WorkerCount sets the number of lock workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory lock queue.
	QueueSize int `koanf:"queue_size"`
	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`
	// DedupeTTLMS expires idempotency keys; 0 keeps them until evicted.
	DedupeTTLMS int `koanf:"dedupe_ttl_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		StoreDriver:            StoreMemory,
		LedgerMode:             LedgerMock,
		LedgerTimeoutMS:        5000,
		LedgerRatePerSec:       50,
		LedgerMaxFailures:      5,
		SuggestionDefaultLimit: 5,
		SuggestionMaxLimit:     HardMaxSuggestionLimit,
		SuggestionTimeoutMS:    2000,
		WorkerCount:            runtime.NumCPU(),
		QueueSize:              1024,
		DedupeSize:             50_000,
		DedupeTTLMS:            int((24 * time.Hour).Milliseconds()),
	}
}

// LedgerTimeout returns LedgerTimeoutMS as a duration.
func (c *Config) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutMS) * time.Millisecond
}

// SuggestionTimeout returns SuggestionTimeoutMS as a duration.
func (c *Config) SuggestionTimeout() time.Duration {
	return time.Duration(c.SuggestionTimeoutMS) * time.Millisecond
}

// DedupeTTL returns DedupeTTLMS as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMS) * time.Millisecond
}
