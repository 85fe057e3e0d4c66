package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/RicardoG06/BancaInternet/internal/domain"
)

//go:embed schema.sql
var schemaDDL string

// Postgres backs the account, ledger, profile and (fallback) idempotency
// stores with a single pgx pool. Monetary columns are NUMERIC and travel
// as text so no precision is lost between the database and decimal.Decimal.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ AccountStore     = (*Postgres)(nil)
	_ LedgerStore      = (*Postgres)(nil)
	_ IdempotencyStore = (*Postgres)(nil)
	_ ProfileStore     = (*Postgres)(nil)
)

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

const accountColumns = `account_id, customer_id, account_name, account_type,
	balance::text, currency, daily_transfer_used::text, daily_transfer_limit::text,
	status, version, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                    domain.Account
		balance, used, limit string
	)
	err := row.Scan(&a.AccountID, &a.CustomerID, &a.AccountName, &a.AccountType,
		&balance, &a.Currency, &used, &limit, &a.Status, &a.Version,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("corrupt balance %q: %w", balance, err)
	}
	if a.DailyTransferUsed, err = decimal.NewFromString(used); err != nil {
		return nil, fmt.Errorf("corrupt daily_transfer_used %q: %w", used, err)
	}
	if a.DailyTransferLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("corrupt daily_transfer_limit %q: %w", limit, err)
	}
	return &a, nil
}

func (p *Postgres) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	row := p.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE account_id = $1", accountID)

	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	return acc, nil
}

func (p *Postgres) GetByOwner(ctx context.Context, customerID string) ([]domain.Account, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE customer_id = $1 ORDER BY created_at",
		customerID)
	if err != nil {
		return nil, fmt.Errorf("account listing failed: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("account scan failed: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// ConditionalUpdate is the compare-and-set write guarding every account
// mutation: it succeeds only if the version read at the start of the
// operation is still current, and bumps it so concurrent writers miss.
func (p *Postgres) ConditionalUpdate(ctx context.Context, accountID string, expectedVersion int64, balance, dailyUsed decimal.Decimal) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts
		 SET balance = $1, daily_transfer_used = $2, version = version + 1, updated_at = now()
		 WHERE account_id = $3 AND version = $4`,
		balance.String(), dailyUsed.String(), accountID, expectedVersion)
	if err != nil {
		return fmt.Errorf("conditional update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, tx domain.Transaction) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO transactions
		 (account_id, ts, transaction_id, type, amount, counterparty, transfer_id, status, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.AccountID, tx.Timestamp, tx.TransactionID, tx.Type, tx.Amount.String(),
		tx.Counterparty, tx.TransferID, tx.Status, tx.Note, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger append failed: %w", err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, accountID string, q LedgerQuery) ([]domain.Transaction, bool, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT account_id, ts, transaction_id, type, amount::text,
		counterparty, transfer_id, status, note, created_at
		FROM transactions WHERE account_id = $1`
	args := []any{accountID}

	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	// Fetch one extra row to detect a further page.
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("ledger query failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		var (
			tx     domain.Transaction
			amount string
		)
		if err := rows.Scan(&tx.AccountID, &tx.Timestamp, &tx.TransactionID, &tx.Type,
			&amount, &tx.Counterparty, &tx.TransferID, &tx.Status, &tx.Note, &tx.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("ledger scan failed: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, false, fmt.Errorf("corrupt amount %q: %w", amount, err)
		}
		entries = append(entries, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := p.pool.QueryRow(ctx,
		"SELECT key, result, created_at, expires_at FROM idempotency_keys WHERE key = $1 AND expires_at > now()",
		key).Scan(&rec.Key, &rec.Result, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) PutIfAbsent(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, result, expires_at)
		 VALUES ($1, $2, now() + $3)
		 ON CONFLICT (key) DO NOTHING`,
		key, result, ttl)
	if err != nil {
		return fmt.Errorf("idempotency write failed: %w", err)
	}
	return nil
}

func (p *Postgres) GetProfile(ctx context.Context, customerID string) (*domain.Profile, error) {
	var prof domain.Profile
	err := p.pool.QueryRow(ctx,
		"SELECT id, email, name, phone, created_at FROM users WHERE id = $1",
		customerID).Scan(&prof.CustomerID, &prof.Email, &prof.Name, &prof.Phone, &prof.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	return &prof, nil
}
