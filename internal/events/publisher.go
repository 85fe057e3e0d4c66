package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// TransferCompleted is emitted after a transfer has fully applied: both
// account updates and both ledger entries are durable by the time it fires.
type TransferCompleted struct {
	TransferID      string          `json:"transferId"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

// Publisher emits domain events to external consumers.
type Publisher interface {
	PublishTransferCompleted(ctx context.Context, event TransferCompleted) error
}

// BreakerPublisher wraps a Publisher with a circuit breaker so a dead
// broker fails fast instead of stalling the transfer path. Publishing is
// best-effort; trips are invisible to transfer callers.
type BreakerPublisher struct {
	inner   Publisher
	breaker *gobreaker.CircuitBreaker
}

var _ Publisher = (*BreakerPublisher)(nil)

func NewBreakerPublisher(inner Publisher) *BreakerPublisher {
	return &BreakerPublisher{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "event-publisher",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *BreakerPublisher) PublishTransferCompleted(ctx context.Context, event TransferCompleted) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.inner.PublishTransferCompleted(ctx, event)
	})
	return err
}
