package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds signals a debit larger than the stored balance.
	// The balance check constraint backs this up at the persistence boundary.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// Repository is the balance-per-account store plus the blocklist. Mutations
// are tx-scoped so callers (the order and top-up engines) can combine them
// with their own writes atomically.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored balance, or zero when no ledger row exists yet.
func (r *Repository) Get(ctx context.Context, accountID string, class AccountClass) (decimal.Decimal, error) {
	const query = `SELECT balance FROM ledger_balances WHERE account_id = $1 AND account_class = $2`

	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, query, accountID, class).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("ledger: get balance: %w", err)
	}
	return balance, nil
}

// GetForUpdate locks and returns the balance row inside the caller's
// transaction. A missing row reads as zero without taking a lock; the
// subsequent credit or debit decides whether a row comes into existence.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, accountID string, class AccountClass) (decimal.Decimal, error) {
	const query = `SELECT balance FROM ledger_balances WHERE account_id = $1 AND account_class = $2 FOR UPDATE`

	var balance decimal.Decimal
	err := tx.QueryRow(ctx, query, accountID, class).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("ledger: get balance for update: %w", err)
	}
	return balance, nil
}

// Credit adds amount to the account, creating the ledger row if absent.
func (r *Repository) Credit(ctx context.Context, tx pgx.Tx, accountID string, class AccountClass, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("ledger: credit amount must be positive")
	}

	const query = `
		INSERT INTO ledger_balances (account_id, account_class, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, account_class)
		DO UPDATE SET balance = ledger_balances.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance
	`

	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, query, accountID, class, amount).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: credit: %w", err)
	}
	return balance, nil
}

// Debit subtracts amount from the account. The write is conditional on the
// balance covering the amount, so the ledger never stores a negative value.
func (r *Repository) Debit(ctx context.Context, tx pgx.Tx, accountID string, class AccountClass, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("ledger: debit amount must be positive")
	}

	const query = `
		UPDATE ledger_balances
		SET balance = balance - $3, updated_at = now()
		WHERE account_id = $1 AND account_class = $2 AND balance >= $3
		RETURNING balance
	`

	var balance decimal.Decimal
	err := tx.QueryRow(ctx, query, accountID, class, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("ledger: debit: %w", err)
	}
	return balance, nil
}

// EnsureAccount creates a zero-balance row if none exists. Used by onboarding
// when a new mitra account is provisioned.
func (r *Repository) EnsureAccount(ctx context.Context, tx pgx.Tx, accountID string, class AccountClass) error {
	const query = `
		INSERT INTO ledger_balances (account_id, account_class, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (account_id, account_class) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, accountID, class); err != nil {
		return fmt.Errorf("ledger: ensure account: %w", err)
	}
	return nil
}

// Block adds the account to the blocklist and flags the profile row in the
// same transaction. Idempotent.
func (r *Repository) Block(ctx context.Context, tx pgx.Tx, accountID string) error {
	if _, err := tx.Exec(ctx, `INSERT INTO blocked_accounts (account_id) VALUES ($1) ON CONFLICT DO NOTHING`, accountID); err != nil {
		return fmt.Errorf("ledger: block account: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET is_blocked = true, updated_at = now() WHERE id = $1`, accountID); err != nil {
		return fmt.Errorf("ledger: flag blocked user: %w", err)
	}
	return nil
}

// Unblock removes the account from the blocklist. A no-op for non-members.
func (r *Repository) Unblock(ctx context.Context, tx pgx.Tx, accountID string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM blocked_accounts WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("ledger: unblock account: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET is_blocked = false, updated_at = now() WHERE id = $1`, accountID); err != nil {
		return fmt.Errorf("ledger: unflag blocked user: %w", err)
	}
	return nil
}

// IsBlocked reports blocklist membership inside the caller's transaction.
func (r *Repository) IsBlocked(ctx context.Context, tx pgx.Tx, accountID string) (bool, error) {
	var blocked bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blocked_accounts WHERE account_id = $1)`, accountID).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("ledger: check blocked: %w", err)
	}
	return blocked, nil
}

// ListBlocked returns the current blocklist.
func (r *Repository) ListBlocked(ctx context.Context) ([]BlockedAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id, blocked_at FROM blocked_accounts ORDER BY blocked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list blocked: %w", err)
	}
	defer rows.Close()

	out := []BlockedAccount{}
	for rows.Next() {
		var b BlockedAccount
		if err := rows.Scan(&b.AccountID, &b.BlockedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan blocked: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate blocked: %w", err)
	}
	return out, nil
}
