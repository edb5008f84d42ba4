package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/backr/internal/smoke"
	"github.com/okian/backr/pkg/logger"
)

const defaultRunTimeout = 5 * time.Minute

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		seedFile = flag.String("seed", "seed.yaml", "Seed file the service was started with")
		limit    = flag.Int("limit", smoke.DefaultLimit, "Suggestion limit to request")
		maxLimit = flag.Int("max-limit", smoke.DefaultMaxLimit, "Server-side suggestion cap")
		workers  = flag.Int("workers", runtime.NumCPU(), "Number of concurrent requests")
		timeout  = flag.Duration("timeout", smoke.DefaultTimeout, "HTTP request timeout")
		locks    = flag.Bool("locks", false, "Also exercise the lock endpoint (mutates backings)")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	_, err := smoke.Run(ctx, &smoke.Config{
		BaseURL:  *baseURL,
		SeedFile: *seedFile,
		Limit:    *limit,
		MaxLimit: *maxLimit,
		Workers:  *workers,
		Timeout:  *timeout,
		Locks:    *locks,
	})
	if err != nil {
		logger.Get().Error(ctx, "smoke run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
