package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/backr/internal/adapters/http/api"
	"github.com/okian/backr/internal/adapters/http/swagger"
	"github.com/okian/backr/internal/adapters/ledger"
	"github.com/okian/backr/internal/adapters/repository"
	app "github.com/okian/backr/internal/app"
	"github.com/okian/backr/internal/config"
	"github.com/okian/backr/pkg/logger"
	"github.com/okian/backr/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := metrics.RegisterRuntimeCollectors(); err != nil {
		loggerInstance.Warn(ctx, "runtime collectors unavailable", logger.Error(err))
	}

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		return
	}
	defer func() {
		if err := closeStore(); err != nil {
			loggerInstance.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	ledgerClient, err := buildLedger(cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build ledger client", logger.String("mode", cfg.LedgerMode), logger.Error(err))
		return
	}

	svc := app.New(serviceOptions(cfg, store, ledgerClient, loggerInstance)...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.String("ledger", cfg.LedgerMode),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newMux registers the docs and business routes.
func newMux(ctx context.Context, svc api.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)
	return mux
}

// buildStore opens the configured entity store. The returned func releases it.
func buildStore(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres, config.StoreSQLite:
		s, err := repository.OpenSQLStore(ctx, cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreMemory:
		s := repository.NewMemoryStore()
		if cfg.SeedFile != "" {
			if err := s.LoadSeed(cfg.SeedFile); err != nil {
				return nil, nil, err
			}
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", repository.ErrUnknownDriver, cfg.StoreDriver)
	}
}

// buildLedger picks the ledger client for cfg.LedgerMode.
func buildLedger(cfg *config.Config, log logger.Logger) (ledger.Client, error) {
	if cfg.LedgerMode != config.LedgerHTTP {
		return ledger.NewMockClient(), nil
	}
	c, err := ledger.NewHTTPClient(ledger.HTTPConfig{
		BaseURL:     cfg.LedgerURL,
		Token:       cfg.LedgerToken,
		Timeout:     cfg.LedgerTimeout(),
		RatePerSec:  cfg.LedgerRatePerSec,
		MaxFailures: uint32(max(cfg.LedgerMaxFailures, 0)),
	}, ledger.WithLogger(log.Named("ledger")))
	if err != nil {
		return nil, fmt.Errorf("ledger http client: %w", err)
	}
	return c, nil
}

func serviceOptions(cfg *config.Config, store repository.Store, client ledger.Client, log logger.Logger) []app.Option {
	return []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithLedger(client),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDedupeTTL(cfg.DedupeTTL()),
		app.WithSuggestionLimits(cfg.SuggestionDefaultLimit, cfg.SuggestionMaxLimit),
		app.WithSuggestionTimeout(cfg.SuggestionTimeout()),
	}
}

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
