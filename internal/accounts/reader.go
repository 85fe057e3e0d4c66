// Package accounts holds the read-only projections: account listing with
// an aggregate summary, per-account transaction history, and the customer
// profile. Nothing here mutates a store.
package accounts

import (
	"context"
	"fmt"

	"github.com/RicardoG06/BancaInternet/internal/domain"
	"github.com/RicardoG06/BancaInternet/internal/store"
)

type Reader struct {
	accounts store.AccountStore
	ledger   store.LedgerStore
	profiles store.ProfileStore
}

func NewReader(accounts store.AccountStore, ledger store.LedgerStore, profiles store.ProfileStore) *Reader {
	return &Reader{accounts: accounts, ledger: ledger, profiles: profiles}
}

// ListAccounts returns every account owned by the customer plus the
// aggregate summary shown on the dashboard.
func (r *Reader) ListAccounts(ctx context.Context, customerID string) ([]domain.Account, domain.AccountSummary, error) {
	accs, err := r.accounts.GetByOwner(ctx, customerID)
	if err != nil {
		return nil, domain.AccountSummary{}, fmt.Errorf("account listing failed: %w", err)
	}

	summary := domain.AccountSummary{TotalAccounts: len(accs)}
	for _, acc := range accs {
		summary.TotalBalance = summary.TotalBalance.Add(acc.Balance)
		summary.DailyTransferUsed = summary.DailyTransferUsed.Add(acc.DailyTransferUsed)
		summary.DailyTransferLimit = summary.DailyTransferLimit.Add(acc.DailyTransferLimit)
	}
	summary.RemainingDailyLimit = summary.DailyTransferLimit.Sub(summary.DailyTransferUsed)
	return accs, summary, nil
}

// History returns one page of an account's ledger, newest first, with
// directional and status aggregation. The account must belong to the
// caller.
func (r *Reader) History(ctx context.Context, requestorID, accountID string, q store.LedgerQuery) ([]domain.Transaction, domain.TransactionSummary, bool, error) {
	acc, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, domain.TransactionSummary{}, false, err
	}
	if acc.CustomerID != requestorID {
		return nil, domain.TransactionSummary{}, false,
			fmt.Errorf("%w: account does not belong to caller", domain.ErrForbidden)
	}

	entries, hasMore, err := r.ledger.Query(ctx, accountID, q)
	if err != nil {
		return nil, domain.TransactionSummary{}, false, fmt.Errorf("history query failed: %w", err)
	}

	return entries, summarize(entries), hasMore, nil
}

// Profile returns the caller's customer record.
func (r *Reader) Profile(ctx context.Context, customerID string) (*domain.Profile, error) {
	return r.profiles.GetProfile(ctx, customerID)
}

// summarize folds one page of entries into the history summary. Debits are
// stored negative, so totals accumulate absolute values and netAmount is
// credits minus |debits|.
func summarize(entries []domain.Transaction) domain.TransactionSummary {
	s := domain.TransactionSummary{TotalTransactions: len(entries)}
	for _, tx := range entries {
		switch tx.Type {
		case domain.TransactionTypeDebit:
			s.TotalDebits = s.TotalDebits.Add(tx.Amount.Abs())
		case domain.TransactionTypeCredit:
			s.TotalCredits = s.TotalCredits.Add(tx.Amount)
		}
		switch tx.Status {
		case domain.TransactionStatusCompleted:
			s.CompletedTransactions++
		case domain.TransactionStatusFailed:
			s.FailedTransactions++
		}
	}
	s.NetAmount = s.TotalCredits.Sub(s.TotalDebits)
	return s
}
