package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RicardoG06/BancaInternet/internal/domain"
	"github.com/RicardoG06/BancaInternet/internal/store"
)

const (
	customerA = "cust-a"
	customerB = "cust-b"
	sourceID  = "acct-source-1111"
	targetID  = "acct-target-2222"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	mem.PutAccount(domain.Account{
		AccountID:          sourceID,
		CustomerID:         customerA,
		Balance:            dec("5000"),
		Currency:           "USD",
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
		Status:             domain.AccountStatusActive,
		CreatedAt:          time.Now(),
	})
	mem.PutAccount(domain.Account{
		AccountID:          targetID,
		CustomerID:         customerA,
		Balance:            dec("2500"),
		Currency:           "USD",
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
		Status:             domain.AccountStatusActive,
		CreatedAt:          time.Now(),
	})
	return mem
}

func newTestEngine(mem *store.Memory) *Engine {
	return NewEngine(mem, mem, mem, nil, nil, 48*time.Hour)
}

func balanceOf(t *testing.T, mem *store.Memory, id string) decimal.Decimal {
	t.Helper()
	acc, err := mem.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func TestExecuteTransferMovesFunds(t *testing.T) {
	mem := newTestStore(t)
	e := newTestEngine(mem)

	result, replay, err := e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("300"),
		Note:            "rent split",
	})
	require.NoError(t, err)
	require.Nil(t, replay)
	require.NotNil(t, result)

	assert.Equal(t, domain.TransferStatusCompleted, result.Status)
	assert.NotEmpty(t, result.TransferID)
	assert.True(t, result.Amount.Equal(dec("300")))

	assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("4700")))
	assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2800")))

	// Sum of both balances is conserved.
	total := balanceOf(t, mem, sourceID).Add(balanceOf(t, mem, targetID))
	assert.True(t, total.Equal(dec("7500")))

	// Daily-used moved on the source only.
	src, err := mem.GetByID(context.Background(), sourceID)
	require.NoError(t, err)
	assert.True(t, src.DailyTransferUsed.Equal(dec("300")))
	tgt, err := mem.GetByID(context.Background(), targetID)
	require.NoError(t, err)
	assert.True(t, tgt.DailyTransferUsed.Equal(dec("0")))

	// One DEBIT leg and one CREDIT leg, correlated by the transfer ID.
	srcEntries, _, err := mem.Query(context.Background(), sourceID, store.LedgerQuery{})
	require.NoError(t, err)
	require.Len(t, srcEntries, 1)
	assert.Equal(t, domain.TransactionTypeDebit, srcEntries[0].Type)
	assert.True(t, srcEntries[0].Amount.Equal(dec("-300")))
	assert.Equal(t, result.TransferID, srcEntries[0].TransferID)
	assert.Equal(t, "Transfer to 2222", srcEntries[0].Counterparty)
	assert.Equal(t, "rent split", srcEntries[0].Note)

	tgtEntries, _, err := mem.Query(context.Background(), targetID, store.LedgerQuery{})
	require.NoError(t, err)
	require.Len(t, tgtEntries, 1)
	assert.Equal(t, domain.TransactionTypeCredit, tgtEntries[0].Type)
	assert.True(t, tgtEntries[0].Amount.Equal(dec("300")))
	assert.Equal(t, result.TransferID, tgtEntries[0].TransferID)
	assert.Equal(t, "Transfer from 1111", tgtEntries[0].Counterparty)
}

func TestExecuteTransferValidation(t *testing.T) {
	tests := []struct {
		name      string
		requestor string
		req       domain.TransferRequest
		wantErr   error
	}{
		{
			name:      "zero amount",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: sourceID, TargetAccountID: targetID, Amount: dec("0")},
			wantErr:   domain.ErrBadRequest,
		},
		{
			name:      "negative amount",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: sourceID, TargetAccountID: targetID, Amount: dec("-5")},
			wantErr:   domain.ErrBadRequest,
		},
		{
			name:      "same account",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: sourceID, TargetAccountID: sourceID, Amount: dec("10")},
			wantErr:   domain.ErrBadRequest,
		},
		{
			name:      "missing target",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: sourceID, Amount: dec("10")},
			wantErr:   domain.ErrBadRequest,
		},
		{
			name:      "no requestor",
			requestor: "",
			req:       domain.TransferRequest{SourceAccountID: sourceID, TargetAccountID: targetID, Amount: dec("10")},
			wantErr:   domain.ErrUnauthorized,
		},
		{
			name:      "unknown source",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: "acct-missing", TargetAccountID: targetID, Amount: dec("10")},
			wantErr:   domain.ErrAccountNotFound,
		},
		{
			name:      "insufficient funds",
			requestor: customerA,
			req:       domain.TransferRequest{SourceAccountID: sourceID, TargetAccountID: targetID, Amount: dec("5000.01")},
			wantErr:   domain.ErrInsufficientFunds,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem := newTestStore(t)
			e := newTestEngine(mem)

			result, replay, err := e.ExecuteTransfer(context.Background(), tc.requestor, tc.req)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, result)
			assert.Nil(t, replay)

			// Rejections must leave zero store mutations behind.
			assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("5000")))
			assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2500")))
			entries, _, err := mem.Query(context.Background(), sourceID, store.LedgerQuery{})
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestExecuteTransferOwnership(t *testing.T) {
	mem := newTestStore(t)
	mem.PutAccount(domain.Account{
		AccountID:          "acct-other",
		CustomerID:         customerB,
		Balance:            dec("9999"),
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
	})
	e := newTestEngine(mem)

	// Foreign source fails regardless of balance sufficiency.
	_, _, err := e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: "acct-other",
		TargetAccountID: targetID,
		Amount:          dec("1"),
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Foreign target fails too: no third-party transfers.
	_, _, err = e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: "acct-other",
		Amount:          dec("1"),
	})
	require.ErrorIs(t, err, domain.ErrForbidden)

	assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("5000")))
	assert.True(t, balanceOf(t, mem, "acct-other").Equal(dec("9999")))
}

func TestExecuteTransferDailyLimit(t *testing.T) {
	mem := store.NewMemory()
	mem.PutAccount(domain.Account{
		AccountID:          sourceID,
		CustomerID:         customerA,
		Balance:            dec("5000"),
		DailyTransferUsed:  dec("450"),
		DailyTransferLimit: dec("500"),
	})
	mem.PutAccount(domain.Account{
		AccountID:          targetID,
		CustomerID:         customerA,
		Balance:            dec("2500"),
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
	})
	e := newTestEngine(mem)

	_, _, err := e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("100"),
	})
	require.ErrorIs(t, err, domain.ErrDailyLimitExceeded)

	assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("5000")))
	assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2500")))

	// Exactly the remaining headroom still goes through.
	_, _, err = e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("50"),
	})
	require.NoError(t, err)

	src, err := mem.GetByID(context.Background(), sourceID)
	require.NoError(t, err)
	assert.True(t, src.DailyTransferUsed.Equal(dec("500")))
	assert.True(t, src.DailyTransferUsed.LessThanOrEqual(src.DailyTransferLimit))
}

func TestExecuteTransferIdempotentReplay(t *testing.T) {
	mem := newTestStore(t)
	e := newTestEngine(mem)

	req := domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("300"),
		IdempotencyKey:  "op-key-1",
	}

	result, replay, err := e.ExecuteTransfer(context.Background(), customerA, req)
	require.NoError(t, err)
	require.Nil(t, replay)
	assert.Equal(t, "op-key-1", result.TransferID)

	// Verbatim resubmission returns the stored payload and moves nothing.
	result2, replay2, err := e.ExecuteTransfer(context.Background(), customerA, req)
	require.NoError(t, err)
	assert.Nil(t, result2)
	require.NotNil(t, replay2)

	expected, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Equal(t, expected, replay2.Result, "replay payload must be byte-identical")

	assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("4700")), "exactly one net balance change")
	assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2800")))

	entries, _, err := mem.Query(context.Background(), sourceID, store.LedgerQuery{})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no duplicate ledger legs on replay")
}

// conflictingAccounts fails the first conditional update on a chosen
// account with a stale-version error, simulating a concurrent writer.
type conflictingAccounts struct {
	*store.Memory
	target string
	failed bool
}

func (c *conflictingAccounts) ConditionalUpdate(ctx context.Context, accountID string, expectedVersion int64, balance, dailyUsed decimal.Decimal) error {
	if accountID == c.target && !c.failed {
		c.failed = true
		return domain.ErrVersionConflict
	}
	return c.Memory.ConditionalUpdate(ctx, accountID, expectedVersion, balance, dailyUsed)
}

func TestExecuteTransferConflictOnStaleSource(t *testing.T) {
	mem := newTestStore(t)
	accts := &conflictingAccounts{Memory: mem, target: sourceID}
	e := NewEngine(accts, mem, mem, nil, nil, 48*time.Hour)

	_, _, err := e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("300"),
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	// Nothing applied: the whole operation failed retryably.
	assert.True(t, balanceOf(t, mem, sourceID).Equal(dec("5000")))
	assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2500")))
	entries, _, err := mem.Query(context.Background(), targetID, store.LedgerQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// brokenCredit lets the source debit through and hard-fails every write to
// the target account.
type brokenCredit struct {
	*store.Memory
	target string
}

var errStoreDown = errors.New("store unavailable")

func (b *brokenCredit) ConditionalUpdate(ctx context.Context, accountID string, expectedVersion int64, balance, dailyUsed decimal.Decimal) error {
	if accountID == b.target {
		return errStoreDown
	}
	return b.Memory.ConditionalUpdate(ctx, accountID, expectedVersion, balance, dailyUsed)
}

func TestExecuteTransferCompensatesFailedCredit(t *testing.T) {
	mem := newTestStore(t)
	accts := &brokenCredit{Memory: mem, target: targetID}
	e := NewEngine(accts, mem, mem, nil, nil, 48*time.Hour)

	_, _, err := e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          dec("300"),
	})
	require.ErrorIs(t, err, domain.ErrInternal)
	require.NotErrorIs(t, err, domain.ErrConflict)

	// The debit was reversed: no money vanished.
	src, err := mem.GetByID(context.Background(), sourceID)
	require.NoError(t, err)
	assert.True(t, src.Balance.Equal(dec("5000")))
	assert.True(t, src.DailyTransferUsed.Equal(dec("0")))
	assert.True(t, balanceOf(t, mem, targetID).Equal(dec("2500")))

	entries, _, err := mem.Query(context.Background(), sourceID, store.LedgerQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries, "no ledger legs for a reversed transfer")
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	mem := store.NewMemory()
	mem.PutAccount(domain.Account{
		AccountID:          sourceID,
		CustomerID:         customerA,
		Balance:            dec("100"),
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
	})
	mem.PutAccount(domain.Account{
		AccountID:          targetID,
		CustomerID:         customerA,
		Balance:            dec("0"),
		DailyTransferUsed:  dec("0"),
		DailyTransferLimit: dec("500"),
	})
	e := newTestEngine(mem)

	// Both debits fit individually but overdraw combined: exactly one may
	// win, the loser must see Conflict or InsufficientFunds.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = e.ExecuteTransfer(context.Background(), customerA, domain.TransferRequest{
				SourceAccountID: sourceID,
				TargetAccountID: targetID,
				Amount:          dec("80"),
			})
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t,
			errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInsufficientFunds),
			"loser must observe Conflict or InsufficientFunds, got %v", err)
	}
	require.Equal(t, 1, successes, "exactly one concurrent debit may win")

	final := balanceOf(t, mem, sourceID)
	assert.True(t, final.Equal(dec("20")))
	assert.False(t, final.IsNegative(), "balance must never go negative")
}
