package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/okian/backr/internal/domain/types"
)

// MockClient is an in-process ledger used for local runs and tests.
type MockClient struct {
	mu       sync.Mutex
	fail     error
	balances map[string]types.Balance
	locks    []LockRequest
	now      func() time.Time
}

// MockOption configures a MockClient.
type MockOption func(*MockClient)

// WithFailure makes every call return err.
func WithFailure(err error) MockOption {
	return func(m *MockClient) { m.fail = err }
}

// WithBalance seeds the balance reported for a party.
func WithBalance(b types.Balance) MockOption {
	return func(m *MockClient) { m.balances[b.PartyID] = b }
}

// NewMockClient creates a MockClient.
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		balances: make(map[string]types.Balance),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFailure switches failure injection on (err != nil) or off.
func (m *MockClient) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// LockFunds records the request and returns a receipt derived from the command id.
func (m *MockClient) LockFunds(ctx context.Context, req LockRequest) (LockReceipt, error) {
	if err := ctx.Err(); err != nil {
		return LockReceipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return LockReceipt{}, m.fail
	}
	m.locks = append(m.locks, req)
	return LockReceipt{ContractID: "mock-" + req.CommandID, LockedAt: m.now().UTC()}, nil
}

// Balance returns the seeded balance, or zeros for unknown parties.
func (m *MockClient) Balance(ctx context.Context, partyID string) (types.Balance, error) {
	if err := ctx.Err(); err != nil {
		return types.Balance{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return types.Balance{}, m.fail
	}
	if b, ok := m.balances[partyID]; ok {
		return b, nil
	}
	return types.Balance{PartyID: partyID, Available: "0", Locked: "0"}, nil
}

// Locks returns a copy of the lock requests seen so far.
func (m *MockClient) Locks() []LockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LockRequest, len(m.locks))
	copy(out, m.locks)
	return out
}
