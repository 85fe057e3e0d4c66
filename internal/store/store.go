package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RicardoG06/BancaInternet/internal/domain"
)

// AccountStore is the durable account record store. Accounts are the only
// contended shared resource in the system; every mutation goes through
// ConditionalUpdate so concurrent writers are detected without locking.
type AccountStore interface {
	// GetByOwner returns every account owned by a customer.
	GetByOwner(ctx context.Context, customerID string) ([]domain.Account, error)

	// GetByID returns one account or domain.ErrAccountNotFound.
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)

	// ConditionalUpdate writes new balance and daily-used values only if
	// the record's version is still expectedVersion, bumping the version
	// on success. Returns domain.ErrVersionConflict when the record moved.
	ConditionalUpdate(ctx context.Context, accountID string, expectedVersion int64, balance, dailyUsed decimal.Decimal) error
}

// LedgerQuery bounds a history read. Zero From/To mean unbounded.
type LedgerQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

// LedgerStore is the append-only transaction log. Entries are write-once
// facts: never updated, never deleted.
type LedgerStore interface {
	Append(ctx context.Context, tx domain.Transaction) error

	// Query returns up to Limit entries newest-first, and whether more
	// entries exist beyond the returned page.
	Query(ctx context.Context, accountID string, q LedgerQuery) ([]domain.Transaction, bool, error)
}

// IdempotencyStore maps a client-supplied operation key to the stored
// result of its first completion, within a bounded retention window.
type IdempotencyStore interface {
	// Get returns the record for key, or nil when absent or expired.
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)

	// PutIfAbsent stores result under key with the given TTL. Concurrent
	// writers racing on a new key carry identical payloads, so the
	// loser's write being dropped or overwritten is acceptable.
	PutIfAbsent(ctx context.Context, key string, result []byte, ttl time.Duration) error
}

// ProfileStore is the customer profile read path.
type ProfileStore interface {
	// GetProfile returns one profile or domain.ErrProfileNotFound.
	GetProfile(ctx context.Context, customerID string) (*domain.Profile, error)
}
