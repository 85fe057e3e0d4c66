package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account statuses.
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusFrozen = "FROZEN"
)

// Transaction types and statuses.
const (
	TransactionTypeDebit  = "DEBIT"
	TransactionTypeCredit = "CREDIT"

	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// TransferStatusCompleted is the terminal status of a successful transfer.
const TransferStatusCompleted = "COMPLETED"

// Account is a customer's bank account. Balance and DailyTransferUsed are
// mutated only through AccountStore.ConditionalUpdate, guarded by Version.
type Account struct {
	AccountID          string          `json:"accountId"`
	CustomerID         string          `json:"customerId"`
	AccountName        string          `json:"accountName"`
	AccountType        string          `json:"accountType"`
	Balance            decimal.Decimal `json:"balance"`
	Currency           string          `json:"currency"`
	DailyTransferUsed  decimal.Decimal `json:"dailyTransferUsed"`
	DailyTransferLimit decimal.Decimal `json:"dailyTransferLimit"`
	Status             string          `json:"status"`
	Version            int64           `json:"-"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Transaction is one immutable ledger entry: a single directional money
// movement on one account. DEBIT rows carry a negative amount, CREDIT rows
// a positive one. Entries sharing a TransferID are the two legs of one
// transfer.
type Transaction struct {
	AccountID     string          `json:"accountId"`
	Timestamp     time.Time       `json:"timestamp"`
	TransactionID string          `json:"transactionId"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Counterparty  string          `json:"counterparty"`
	TransferID    string          `json:"transferId"`
	Status        string          `json:"status"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Profile is the customer record behind the profile read path.
type Profile struct {
	CustomerID string    `json:"customerId"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TransferRequest is the payload from the client. It is never persisted as
// its own entity; its effect is a pair of ledger entries plus an optional
// idempotency record.
type TransferRequest struct {
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	Note            string          `json:"note,omitempty"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty"`
}

// TransferResult is the canonical success payload for a transfer.
type TransferResult struct {
	Status          string          `json:"status"`
	TransferID      string          `json:"transferId"`
	Amount          decimal.Decimal `json:"amount"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
}

// IdempotencyRecord maps a client-supplied operation key to the result
// payload computed the first time the operation completed. Result holds the
// marshaled TransferResult verbatim so a replayed request can be answered
// byte-identically.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Result    []byte    `json:"result"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AccountSummary aggregates a customer's accounts for the listing endpoint.
type AccountSummary struct {
	TotalBalance        decimal.Decimal `json:"totalBalance"`
	TotalAccounts       int             `json:"totalAccounts"`
	DailyTransferUsed   decimal.Decimal `json:"dailyTransferUsed"`
	DailyTransferLimit  decimal.Decimal `json:"dailyTransferLimit"`
	RemainingDailyLimit decimal.Decimal `json:"remainingDailyLimit"`
}

// TransactionSummary aggregates one page of an account's history.
type TransactionSummary struct {
	TotalTransactions     int             `json:"totalTransactions"`
	TotalDebits           decimal.Decimal `json:"totalDebits"`
	TotalCredits          decimal.Decimal `json:"totalCredits"`
	CompletedTransactions int             `json:"completedTransactions"`
	FailedTransactions    int             `json:"failedTransactions"`
	NetAmount             decimal.Decimal `json:"netAmount"`
}
