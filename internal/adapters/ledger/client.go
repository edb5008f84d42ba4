// Package ledger talks to the Canton participant that holds backer funds.
package ledger

import (
	"context"
	"time"

	"github.com/okian/backr/internal/domain/types"
)

// Client is the ledger surface the service depends on.
type Client interface {
	// LockFunds locks Amount of PartyID's holdings in favour of the backed
	// entity. CommandID makes the call idempotent on the ledger side.
	LockFunds(ctx context.Context, req LockRequest) (LockReceipt, error)

	// Balance returns the available and locked holdings of a party.
	Balance(ctx context.Context, partyID string) (types.Balance, error)
}

// LockRequest is the payload of a lock command.
type LockRequest struct {
	CommandID string `json:"command_id"`
	BackingID string `json:"backing_id"`
	PartyID   string `json:"party_id"`
	Amount    string `json:"amount"`
}

// LockReceipt confirms a lock; ContractID identifies the created lock contract.
type LockReceipt struct {
	ContractID string    `json:"contract_id"`
	LockedAt   time.Time `json:"locked_at"`
}

// BalanceResponse is the ledger's balance payload.
type BalanceResponse struct {
	PartyID   string `json:"party_id"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}
