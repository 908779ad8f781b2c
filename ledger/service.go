package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service exposes balance reads and the admin block/unblock operations, and
// adapts the repository to the narrower store interfaces the order engine
// consumes.
type Service struct {
	pool TxBeginner
	repo *Repository
}

func NewService(pool TxBeginner, repo *Repository) *Service {
	return &Service{pool: pool, repo: repo}
}

// Balance returns the current balance for (accountID, class), zero if the
// account has no ledger row yet.
func (s *Service) Balance(ctx context.Context, accountID string, class AccountClass) (decimal.Decimal, error) {
	if !ValidClass(class) {
		return decimal.Zero, fmt.Errorf("ledger: invalid account class %q", class)
	}
	return s.repo.Get(ctx, accountID, class)
}

// MitraBalanceForUpdate locks and returns a mitra balance inside tx.
func (s *Service) MitraBalanceForUpdate(ctx context.Context, tx pgx.Tx, mitraID string) (decimal.Decimal, error) {
	return s.repo.GetForUpdate(ctx, tx, mitraID, ClassMitra)
}

// DebitMitra subtracts amount from a mitra balance inside tx.
func (s *Service) DebitMitra(ctx context.Context, tx pgx.Tx, mitraID string, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.Debit(ctx, tx, mitraID, ClassMitra, amount)
}

// IsBlocked reports blocklist membership inside tx.
func (s *Service) IsBlocked(ctx context.Context, tx pgx.Tx, accountID string) (bool, error) {
	return s.repo.IsBlocked(ctx, tx, accountID)
}

// Block adds the account to the blocklist inside tx. Idempotent.
func (s *Service) Block(ctx context.Context, tx pgx.Tx, accountID string) error {
	return s.repo.Block(ctx, tx, accountID)
}

// BlockAccount is the admin operation: it blocks the account in its own
// transaction. Idempotent.
func (s *Service) BlockAccount(ctx context.Context, accountID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.Block(ctx, tx, accountID)
	})
}

// UnblockAccount removes the account from the blocklist in its own
// transaction. A no-op for non-members. Unblocking is always an explicit
// admin action; topping up a balance never unblocks automatically.
func (s *Service) UnblockAccount(ctx context.Context, accountID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.repo.Unblock(ctx, tx, accountID)
	})
}

// ListBlocked returns the current blocklist.
func (s *Service) ListBlocked(ctx context.Context) ([]BlockedAccount, error) {
	return s.repo.ListBlocked(ctx)
}

func (s *Service) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit tx: %w", err)
	}
	return nil
}
