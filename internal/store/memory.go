package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RicardoG06/BancaInternet/internal/domain"
)

// Memory is an in-process implementation of every store interface. It keeps
// the same contracts as the durable backends (compare-and-set on account
// versions, append-only ledger entries, first-write-wins idempotency keys)
// so the engine behaves identically against it. Used in tests and local runs.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	entries  map[string][]domain.Transaction
	idem     map[string]domain.IdempotencyRecord
	profiles map[string]domain.Profile

	// now is swappable so expiry behavior is testable.
	now func() time.Time
}

var (
	_ AccountStore     = (*Memory)(nil)
	_ LedgerStore      = (*Memory)(nil)
	_ IdempotencyStore = (*Memory)(nil)
	_ ProfileStore     = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]domain.Account),
		entries:  make(map[string][]domain.Transaction),
		idem:     make(map[string]domain.IdempotencyRecord),
		profiles: make(map[string]domain.Profile),
		now:      time.Now,
	}
}

// SetClock replaces the store's time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// PutAccount inserts or replaces an account record, defaulting version to 1.
func (m *Memory) PutAccount(acc domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.Version == 0 {
		acc.Version = 1
	}
	m.accounts[acc.AccountID] = acc
}

// PutProfile inserts or replaces a profile record.
func (m *Memory) PutProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.CustomerID] = p
}

func (m *Memory) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (m *Memory) GetByOwner(ctx context.Context, customerID string) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []domain.Account
	for _, acc := range m.accounts {
		if acc.CustomerID == customerID {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (m *Memory) ConditionalUpdate(ctx context.Context, accountID string, expectedVersion int64, balance, dailyUsed decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if acc.Version != expectedVersion {
		return domain.ErrVersionConflict
	}

	acc.Balance = balance
	acc.DailyTransferUsed = dailyUsed
	acc.Version++
	acc.UpdatedAt = m.now()
	m.accounts[accountID] = acc
	return nil
}

func (m *Memory) Append(ctx context.Context, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tx.AccountID] = append(m.entries[tx.AccountID], tx)
	return nil
}

func (m *Memory) Query(ctx context.Context, accountID string, q LedgerQuery) ([]domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var matched []domain.Transaction
	for _, tx := range m.entries[accountID] {
		if !q.From.IsZero() && tx.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && tx.Timestamp.After(q.To) {
			continue
		}
		matched = append(matched, tx)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.idem[key]
	if !ok || m.now().After(rec.ExpiresAt) {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *Memory) PutIfAbsent(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.idem[key]; ok && m.now().Before(rec.ExpiresAt) {
		return nil
	}

	now := m.now()
	m.idem[key] = domain.IdempotencyRecord{
		Key:       key,
		Result:    append([]byte(nil), result...),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return nil
}

func (m *Memory) GetProfile(ctx context.Context, customerID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prof, ok := m.profiles[customerID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &prof, nil
}
