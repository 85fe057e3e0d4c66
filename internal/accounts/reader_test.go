package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RicardoG06/BancaInternet/internal/domain"
	"github.com/RicardoG06/BancaInternet/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestListAccountsSummary(t *testing.T) {
	mem := store.NewMemory()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mem.PutAccount(domain.Account{
		AccountID:          "acct-check",
		CustomerID:         "cust-1",
		Balance:            dec("5000"),
		DailyTransferUsed:  dec("120"),
		DailyTransferLimit: dec("500"),
		CreatedAt:          base,
	})
	mem.PutAccount(domain.Account{
		AccountID:          "acct-save",
		CustomerID:         "cust-1",
		Balance:            dec("2500"),
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
		CreatedAt:          base.Add(time.Hour),
	})
	mem.PutAccount(domain.Account{
		AccountID:  "acct-foreign",
		CustomerID: "cust-2",
		Balance:    dec("77"),
	})

	r := NewReader(mem, mem, mem)
	accs, summary, err := r.ListAccounts(context.Background(), "cust-1")
	require.NoError(t, err)

	require.Len(t, accs, 2)
	assert.Equal(t, "acct-check", accs[0].AccountID)
	assert.Equal(t, 2, summary.TotalAccounts)
	assert.True(t, summary.TotalBalance.Equal(dec("7500")))
	assert.True(t, summary.DailyTransferUsed.Equal(dec("120")))
	assert.True(t, summary.DailyTransferLimit.Equal(dec("1000")))
	assert.True(t, summary.RemainingDailyLimit.Equal(dec("880")))
}

func TestListAccountsEmpty(t *testing.T) {
	mem := store.NewMemory()
	r := NewReader(mem, mem, mem)

	accs, summary, err := r.ListAccounts(context.Background(), "cust-none")
	require.NoError(t, err)
	assert.Empty(t, accs)
	assert.Equal(t, 0, summary.TotalAccounts)
	assert.True(t, summary.TotalBalance.Equal(decimal.Zero))
}

func TestHistory(t *testing.T) {
	mem := store.NewMemory()
	mem.PutAccount(domain.Account{AccountID: "acct-1", CustomerID: "cust-1"})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Append(ctx, domain.Transaction{
		AccountID:     "acct-1",
		TransactionID: "tx-1",
		Timestamp:     base,
		Type:          domain.TransactionTypeCredit,
		Amount:        dec("1200"),
		Status:        domain.TransactionStatusCompleted,
	}))
	require.NoError(t, mem.Append(ctx, domain.Transaction{
		AccountID:     "acct-1",
		TransactionID: "tx-2",
		Timestamp:     base.Add(time.Hour),
		Type:          domain.TransactionTypeDebit,
		Amount:        dec("-85.40"),
		Status:        domain.TransactionStatusCompleted,
	}))
	require.NoError(t, mem.Append(ctx, domain.Transaction{
		AccountID:     "acct-1",
		TransactionID: "tx-3",
		Timestamp:     base.Add(2 * time.Hour),
		Type:          domain.TransactionTypeDebit,
		Amount:        dec("-42.99"),
		Status:        domain.TransactionStatusFailed,
	}))

	r := NewReader(mem, mem, mem)
	entries, summary, hasMore, err := r.History(ctx, "cust-1", "acct-1", store.LedgerQuery{})
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, entries, 3)
	assert.Equal(t, "tx-3", entries[0].TransactionID, "newest first")

	assert.Equal(t, 3, summary.TotalTransactions)
	assert.True(t, summary.TotalCredits.Equal(dec("1200")))
	assert.True(t, summary.TotalDebits.Equal(dec("128.39")), "debit totals are absolute values")
	assert.True(t, summary.NetAmount.Equal(dec("1071.61")))
	assert.Equal(t, 2, summary.CompletedTransactions)
	assert.Equal(t, 1, summary.FailedTransactions)
}

func TestHistoryOwnership(t *testing.T) {
	mem := store.NewMemory()
	mem.PutAccount(domain.Account{AccountID: "acct-1", CustomerID: "cust-1"})
	r := NewReader(mem, mem, mem)

	_, _, _, err := r.History(context.Background(), "cust-2", "acct-1", store.LedgerQuery{})
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, _, _, err = r.History(context.Background(), "cust-1", "acct-missing", store.LedgerQuery{})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestProfile(t *testing.T) {
	mem := store.NewMemory()
	mem.PutProfile(domain.Profile{CustomerID: "cust-1", Email: "demo@bancainternet.dev", Name: "Demo Customer"})
	r := NewReader(mem, mem, mem)

	prof, err := r.Profile(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Demo Customer", prof.Name)

	_, err = r.Profile(context.Background(), "cust-ghost")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}
