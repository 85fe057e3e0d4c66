// Package transfer implements the funds-transfer engine: the one component
// that moves money between two accounts and must stay correct under
// concurrent requests, client retries and partial store failures.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/RicardoG06/BancaInternet/internal/domain"
	"github.com/RicardoG06/BancaInternet/internal/events"
	"github.com/RicardoG06/BancaInternet/internal/store"
)

// Bounded retries inside the critical section. The credit side can only
// fail on a version race (its business checks all live on the debit side),
// so a short re-read loop resolves almost every race; past that the debit
// is reversed.
const (
	creditAttempts       = 3
	compensationAttempts = 3
)

// Engine orchestrates validation, idempotency resolution, invariant checks
// and the conditional dual-update with ledger append. All store clients are
// injected at construction; the engine holds no other state, so one
// instance is safe for any number of concurrent requests.
type Engine struct {
	accounts  store.AccountStore
	ledger    store.LedgerStore
	idem      store.IdempotencyStore
	publisher events.Publisher
	log       *zap.Logger
	idemTTL   time.Duration
	now       func() time.Time
}

// NewEngine wires an Engine. publisher may be nil when no broker is
// configured; events are then skipped.
func NewEngine(accounts store.AccountStore, ledger store.LedgerStore, idem store.IdempotencyStore, publisher events.Publisher, log *zap.Logger, idemTTL time.Duration) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		accounts:  accounts,
		ledger:    ledger,
		idem:      idem,
		publisher: publisher,
		log:       log,
		idemTTL:   idemTTL,
		now:       time.Now,
	}
}

// ExecuteTransfer moves req.Amount from the source to the target account on
// behalf of requestorID. On an idempotent replay the stored record is
// returned instead of a fresh result so the caller can answer with the
// original payload verbatim.
//
// Failure modes map onto the domain error taxonomy; a version race on the
// source debit surfaces as domain.ErrConflict and the caller is expected to
// retry the identical request with the same idempotency key.
func (e *Engine) ExecuteTransfer(ctx context.Context, requestorID string, req domain.TransferRequest) (*domain.TransferResult, *domain.IdempotencyRecord, error) {
	// 1. Fail-fast validation: no side effects past this block.
	if requestorID == "" {
		return nil, nil, fmt.Errorf("%w: no verified caller identity", domain.ErrUnauthorized)
	}
	if req.SourceAccountID == "" || req.TargetAccountID == "" {
		return nil, nil, fmt.Errorf("%w: sourceAccountId and targetAccountId are required", domain.ErrBadRequest)
	}
	if req.SourceAccountID == req.TargetAccountID {
		return nil, nil, fmt.Errorf("%w: source and target accounts cannot be the same", domain.ErrBadRequest)
	}
	if !req.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be greater than 0", domain.ErrBadRequest)
	}

	// 2. Idempotency resolution: a non-expired record answers the request
	// without touching any store mutably.
	if req.IdempotencyKey != "" {
		rec, err := e.idem.Get(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, nil, fmt.Errorf("idempotency resolution failed: %w", err)
		}
		if rec != nil {
			return nil, rec, nil
		}
	}

	// 3. Account resolution and ownership. Both accounts must belong to
	// the requestor; third-party transfers are not supported.
	source, err := e.accounts.GetByID(ctx, req.SourceAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("source account: %w", err)
	}
	target, err := e.accounts.GetByID(ctx, req.TargetAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("target account: %w", err)
	}
	if source.CustomerID != requestorID {
		return nil, nil, fmt.Errorf("%w: source account does not belong to caller", domain.ErrForbidden)
	}
	if target.CustomerID != requestorID {
		return nil, nil, fmt.Errorf("%w: target account does not belong to caller", domain.ErrForbidden)
	}

	// 4. Business invariants against the freshly-read source account.
	if source.Balance.LessThan(req.Amount) {
		return nil, nil, domain.ErrInsufficientFunds
	}
	if source.DailyTransferLimit.Sub(source.DailyTransferUsed).LessThan(req.Amount) {
		return nil, nil, domain.ErrDailyLimitExceeded
	}

	// The transfer ID correlates both ledger legs and distinguishes a
	// replay from a genuinely new transfer.
	transferID := req.IdempotencyKey
	if transferID == "" {
		transferID = uuid.NewString()
	}

	// 5. Debit source. A version conflict here means another operation
	// changed the account since we read it; nothing has been applied yet,
	// so the whole request fails retryably.
	newBalance := source.Balance.Sub(req.Amount)
	newDailyUsed := source.DailyTransferUsed.Add(req.Amount)
	if err := e.accounts.ConditionalUpdate(ctx, source.AccountID, source.Version, newBalance, newDailyUsed); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, nil, fmt.Errorf("%w: source account changed concurrently", domain.ErrConflict)
		}
		return nil, nil, fmt.Errorf("%w: source debit: %v", domain.ErrInternal, err)
	}

	// 6. Credit target. From here on the debit is durable, so a credit
	// failure must reverse it before surfacing.
	if err := e.creditTarget(ctx, target, req.Amount); err != nil {
		e.compensateDebit(ctx, source.AccountID, req.Amount, transferID)
		return nil, nil, fmt.Errorf("%w: target credit: %v", domain.ErrInternal, err)
	}

	// 7. Ledger legs, both tagged with the shared transfer ID. The debit
	// row carries a negative amount.
	now := e.now().UTC()
	legs := []domain.Transaction{
		{
			AccountID:     source.AccountID,
			Timestamp:     now,
			TransactionID: uuid.NewString(),
			Type:          domain.TransactionTypeDebit,
			Amount:        req.Amount.Neg(),
			Counterparty:  "Transfer to " + lastFour(target.AccountID),
			TransferID:    transferID,
			Status:        domain.TransactionStatusCompleted,
			Note:          req.Note,
			CreatedAt:     now,
		},
		{
			AccountID:     target.AccountID,
			Timestamp:     now,
			TransactionID: uuid.NewString(),
			Type:          domain.TransactionTypeCredit,
			Amount:        req.Amount,
			Counterparty:  "Transfer from " + lastFour(source.AccountID),
			TransferID:    transferID,
			Status:        domain.TransactionStatusCompleted,
			Note:          req.Note,
			CreatedAt:     now,
		},
	}
	for _, leg := range legs {
		if err := e.ledger.Append(ctx, leg); err != nil {
			// Funds have moved; a missing ledger leg is a reconciliation
			// problem, not a reason to move them back.
			e.log.Error("ledger append failed after funds moved",
				zap.String("transferId", transferID),
				zap.String("accountId", leg.AccountID),
				zap.String("type", leg.Type),
				zap.Error(err))
			return nil, nil, fmt.Errorf("%w: ledger append: %v", domain.ErrInternal, err)
		}
	}

	result := &domain.TransferResult{
		Status:          domain.TransferStatusCompleted,
		TransferID:      transferID,
		Amount:          req.Amount,
		SourceAccountID: source.AccountID,
		TargetAccountID: target.AccountID,
	}

	// 8. Record the outcome so a retry of the same request short-circuits
	// in step 2. Losing this write only costs a replay the hard way.
	if req.IdempotencyKey != "" {
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("result marshal failed: %w", err)
		}
		if err := e.idem.PutIfAbsent(ctx, req.IdempotencyKey, payload, e.idemTTL); err != nil {
			e.log.Error("idempotency record write failed",
				zap.String("transferId", transferID),
				zap.Error(err))
		}
	}

	if e.publisher != nil {
		event := events.TransferCompleted{
			TransferID:      transferID,
			SourceAccountID: source.AccountID,
			TargetAccountID: target.AccountID,
			Amount:          req.Amount,
			OccurredAt:      now,
		}
		// Best-effort, off the request path. The transfer is already
		// durable; a broker outage must not make it look failed.
		go func() {
			if err := e.publisher.PublishTransferCompleted(context.Background(), event); err != nil {
				e.log.Warn("transfer event publish failed",
					zap.String("transferId", transferID),
					zap.Error(err))
			}
		}()
	}

	return result, nil, nil
}

// creditTarget applies the credit with a short re-read loop: a conflict on
// the target is always a benign version race, never a business rejection.
func (e *Engine) creditTarget(ctx context.Context, target *domain.Account, amount decimal.Decimal) error {
	var err error
	for attempt := 0; attempt < creditAttempts; attempt++ {
		err = e.accounts.ConditionalUpdate(ctx, target.AccountID, target.Version,
			target.Balance.Add(amount), target.DailyTransferUsed)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		target, err = e.accounts.GetByID(ctx, target.AccountID)
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", domain.ErrVersionConflict, creditAttempts)
}

// compensateDebit reverses a durable debit whose matching credit could not
// be applied, restoring both balance and the daily-used counter. Exhausting
// the retries leaves the books inconsistent; that state is logged loudly
// for manual reconciliation because nothing else can fix it from here.
func (e *Engine) compensateDebit(ctx context.Context, sourceAccountID string, amount decimal.Decimal, transferID string) {
	for attempt := 0; attempt < compensationAttempts; attempt++ {
		source, err := e.accounts.GetByID(ctx, sourceAccountID)
		if err != nil {
			continue
		}
		err = e.accounts.ConditionalUpdate(ctx, sourceAccountID, source.Version,
			source.Balance.Add(amount), source.DailyTransferUsed.Sub(amount))
		if err == nil {
			e.log.Warn("debit reversed after credit failure",
				zap.String("transferId", transferID),
				zap.String("sourceAccountId", sourceAccountID))
			return
		}
	}
	e.log.Error("compensation failed: debit applied without credit, manual reconciliation required",
		zap.String("transferId", transferID),
		zap.String("sourceAccountId", sourceAccountID),
		zap.String("amount", amount.String()))
}

func lastFour(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}
