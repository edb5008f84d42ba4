package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/okian/backr/internal/domain/types"
	"github.com/okian/backr/pkg/logger"
	"github.com/okian/backr/pkg/metrics"
)

const (
	defaultTimeout     = 5 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
	maxErrorBody       = 4 << 10
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	RatePerSec  float64 // <= 0 disables rate limiting
	MaxFailures uint32  // consecutive failures that open the circuit
}

// HTTPClient calls the ledger JSON API behind a circuit breaker and an
// outbound rate limiter.
type HTTPClient struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.http = c
		}
	}
}

// WithLogger sets the logger used for breaker transitions.
func WithLogger(l logger.Logger) HTTPOption {
	return func(h *HTTPClient) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHTTPClient builds a client for cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig, opts ...HTTPOption) (*HTTPClient, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ledger url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = max(1, int(cfg.RatePerSec))
	}

	h := &HTTPClient{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     defaultOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		// a refused command says nothing about ledger health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateLedgerCircuitState(int(to))
			h.log.Warn(context.Background(), "ledger circuit state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return h, nil
}

// LockFunds posts a lock command.
func (h *HTTPClient) LockFunds(ctx context.Context, req LockRequest) (LockReceipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return LockReceipt{}, fmt.Errorf("encode lock request: %w", err)
	}
	var receipt LockReceipt
	if err := h.call(ctx, "lock_funds", http.MethodPost, "/v1/locks", body, &receipt); err != nil {
		return LockReceipt{}, err
	}
	if receipt.ContractID == "" {
		return LockReceipt{}, fmt.Errorf("%w: missing contract_id", ErrInvalidResponse)
	}
	return receipt, nil
}

// Balance fetches a party's holdings.
func (h *HTTPClient) Balance(ctx context.Context, partyID string) (types.Balance, error) {
	var resp BalanceResponse
	path := "/v1/parties/" + url.PathEscape(partyID) + "/balance"
	if err := h.call(ctx, "balance", http.MethodGet, path, nil, &resp); err != nil {
		return types.Balance{}, err
	}
	b := types.Balance{PartyID: resp.PartyID, Available: resp.Available, Locked: resp.Locked}
	if b.PartyID == "" {
		b.PartyID = partyID
	}
	return b, nil
}

// State reports the circuit breaker state.
func (h *HTTPClient) State() gobreaker.State {
	return h.breaker.State()
}

func (h *HTTPClient) call(ctx context.Context, op, method, path string, body []byte, out any) error {
	start := time.Now()
	err := h.do(ctx, method, path, body, out)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		metrics.RecordErrorByComponent("ledger", op)
	}
	metrics.RecordLedgerLatency(op, outcome, float64(time.Since(start).Microseconds())/1000)
	return err
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}

	_, err := h.breaker.Execute(func() (interface{}, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, h.base+path, rdr)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if h.token != "" {
			req.Header.Set("Authorization", "Bearer "+h.token)
		}

		resp, err := h.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, readSnippet(resp.Body))
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, readSnippet(resp.Body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
