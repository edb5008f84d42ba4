// Package smoke drives a running Backr instance over HTTP and checks that
// its answers respect the ranking and lock-request contracts.
package smoke

import "time"

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL  string        // Base URL of the service
	SeedFile string        // YAML seed the service was started with
	Limit    int           // limit passed to the suggestions endpoint
	MaxLimit int           // server-side cap on limit
	Workers  int           // concurrent suggestion requests
	Timeout  time.Duration // HTTP request timeout
	Locks    bool          // also exercise the lock endpoint
}

// Stats holds run statistics.
type Stats struct {
	EntitiesChecked int
	SuggestionsSeen int
	EmptyResults    int
	Violations      int
	LocksQueued     int
	LocksDuplicate  int
	LocksRejected   int
	LocksUnexpected int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultLimit    = 5
	DefaultMaxLimit = 10
	DefaultWorkers  = 4
	DefaultTimeout  = 10 * time.Second
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.MaxLimit <= 0 {
		out.MaxLimit = DefaultMaxLimit
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}
