package model

import "time"

// LockJob asks the worker pool to convert a pledge into a locked balance.
type LockJob struct {
	JobID          string    // unique id, also used as the ledger command id
	IdempotencyKey string    // client supplied key, defaults to the backing id
	BackingID      string    // backing being locked
	PartyID        string    // ledger party that owns the funds
	Amount         string    // decimal amount to lock
	EnqueuedAt     time.Time // when the job entered the queue
}
