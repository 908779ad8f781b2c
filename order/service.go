package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Commission and acceptance policy. The platform keeps 25% of every completed
// order; a mitra needs at least Rp 10.000 on the ledger to accept work.
var (
	commissionRate   = decimal.NewFromFloat(0.25)
	minAcceptBalance = decimal.NewFromInt(10000)
)

var (
	// ErrInvalidTransition signals the requested transition is not legal in the
	// order's current status.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrInsufficientBalance signals the mitra's balance is below the
	// acceptance threshold.
	ErrInsufficientBalance = errors.New("order: mitra balance below acceptance threshold")
	// ErrMitraBlocked signals a blocked mitra tried to accept an order.
	ErrMitraBlocked = errors.New("order: mitra is blocked from accepting orders")
	// ErrInvalidCompletionTime signals the completion time precedes the start time.
	ErrInvalidCompletionTime = errors.New("order: completion time before start time")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore is the slice of the ledger the engine needs: row-locked reads
// and commission debits inside the engine's transaction.
type LedgerStore interface {
	MitraBalanceForUpdate(ctx context.Context, tx pgx.Tx, mitraID string) (decimal.Decimal, error)
	DebitMitra(ctx context.Context, tx pgx.Tx, mitraID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// BlockStore gates acceptance and records commission blocks.
type BlockStore interface {
	IsBlocked(ctx context.Context, tx pgx.Tx, accountID string) (bool, error)
	Block(ctx context.Context, tx pgx.Tx, accountID string) error
}

// Service is the order lifecycle engine. It is the only writer of order
// status, timestamps and financial fields, and it owns the ledger/blocklist
// side effects each transition triggers.
type Service struct {
	pool      TxBeginner
	repo      Repository
	ledger    LedgerStore
	blocklist BlockStore
	idGen     func() string
	now       func() time.Time
}

func NewService(pool TxBeginner, repo Repository, ledger LedgerStore, blocklist BlockStore) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		ledger:    ledger,
		blocklist: blocklist,
		idGen:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create places a new pending order on behalf of a customer.
func (s *Service) Create(ctx context.Context, params CreateParams) (Order, error) {
	if params.UserID == "" {
		return Order{}, fmt.Errorf("order: missing user id")
	}
	if !ValidService(params.Service) {
		return Order{}, fmt.Errorf("order: unknown service %q", params.Service)
	}
	if !params.Rate.IsPositive() {
		return Order{}, fmt.Errorf("order: rate must be positive")
	}
	if strings.TrimSpace(params.Address) == "" {
		return Order{}, fmt.Errorf("order: address required")
	}
	if params.PaymentMethod != nil && *params.PaymentMethod != PaymentBalance && *params.PaymentMethod != PaymentCash {
		return Order{}, fmt.Errorf("order: unknown payment method %q", *params.PaymentMethod)
	}

	return s.repo.Create(ctx, s.idGen(), params)
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns orders matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Order, error) {
	return s.repo.List(ctx, filters)
}

// Accept assigns a pending order to a mitra. The mitra must not be blocked
// and must hold at least the acceptance threshold on the ledger. The order
// row is locked for the duration of the transaction, so of two concurrent
// accepts exactly one wins; the other sees ErrInvalidTransition.
func (s *Service) Accept(ctx context.Context, orderID, mitraID string) (Order, error) {
	if orderID == "" || mitraID == "" {
		return Order{}, fmt.Errorf("order: accept requires order id and mitra id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ord, err := s.repo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != StatusPending {
		return Order{}, ErrInvalidTransition
	}

	blocked, err := s.blocklist.IsBlocked(ctx, tx, mitraID)
	if err != nil {
		return Order{}, err
	}
	if blocked {
		return Order{}, ErrMitraBlocked
	}

	balance, err := s.ledger.MitraBalanceForUpdate(ctx, tx, mitraID)
	if err != nil {
		return Order{}, err
	}
	if balance.LessThan(minAcceptBalance) {
		return Order{}, ErrInsufficientBalance
	}

	updated, err := s.repo.MarkAccepted(ctx, tx, orderID, mitraID, s.now())
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return Order{}, ErrInvalidTransition
		}
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("order: commit accept: %w", err)
	}
	return updated, nil
}

// Start moves an accepted order into progress.
func (s *Service) Start(ctx context.Context, orderID string) (Order, error) {
	return s.simpleTransition(ctx, orderID, StatusAccepted, func(tx pgx.Tx) (Order, error) {
		return s.repo.MarkInProgress(ctx, tx, orderID, s.now())
	})
}

// Cancel voids an order that has not started yet. No financial side effects.
func (s *Service) Cancel(ctx context.Context, orderID string) (Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ord, err := s.repo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != StatusPending && ord.Status != StatusAccepted {
		return Order{}, ErrInvalidTransition
	}

	updated, err := s.repo.MarkCancelled(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return Order{}, ErrInvalidTransition
		}
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("order: commit cancel: %w", err)
	}
	return updated, nil
}

// Complete finishes an in-progress order. The order always completes; work
// already performed is never voided for billing reasons. If the mitra cannot
// afford the 25% commission the balance is left untouched and the mitra is
// blocked from accepting further orders instead.
func (s *Service) Complete(ctx context.Context, orderID string, endedAt time.Time) (CompletionResult, error) {
	if orderID == "" {
		return CompletionResult{}, fmt.Errorf("order: complete requires order id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ord, err := s.repo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return CompletionResult{}, err
	}
	if ord.Status != StatusInProgress {
		return CompletionResult{}, ErrInvalidTransition
	}
	if ord.StartedAt == nil || ord.MitraID == nil {
		return CompletionResult{}, fmt.Errorf("order: %s is in progress without start time or mitra", orderID)
	}
	if endedAt.Before(*ord.StartedAt) {
		return CompletionResult{}, ErrInvalidCompletionTime
	}

	duration := workDuration(*ord.StartedAt, endedAt)
	total := ord.Rate.Mul(decimal.NewFromInt(int64(duration)))
	commission := total.Mul(commissionRate)

	updated, err := s.repo.MarkCompleted(ctx, tx, orderID, CompletionParams{
		CompletedAt: endedAt,
		Duration:    duration,
		TotalAmount: total,
		Commission:  commission,
	})
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return CompletionResult{}, ErrInvalidTransition
		}
		return CompletionResult{}, err
	}

	balance, err := s.ledger.MitraBalanceForUpdate(ctx, tx, *ord.MitraID)
	if err != nil {
		return CompletionResult{}, err
	}

	result := CompletionResult{Order: updated}
	if balance.LessThan(commission) {
		if err := s.blocklist.Block(ctx, tx, *ord.MitraID); err != nil {
			return CompletionResult{}, err
		}
		result.Blocked = true
	} else {
		if _, err := s.ledger.DebitMitra(ctx, tx, *ord.MitraID, commission); err != nil {
			return CompletionResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CompletionResult{}, fmt.Errorf("order: commit complete: %w", err)
	}
	return result, nil
}

func (s *Service) simpleTransition(ctx context.Context, orderID string, from Status, apply func(pgx.Tx) (Order, error)) (Order, error) {
	if orderID == "" {
		return Order{}, fmt.Errorf("order: missing order id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ord, err := s.repo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.Status != from {
		return Order{}, ErrInvalidTransition
	}

	updated, err := apply(tx)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return Order{}, ErrInvalidTransition
		}
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("order: commit transition: %w", err)
	}
	return updated, nil
}

// workDuration rounds the worked time up to whole hours, never below one.
// A 90 minute job bills two hours; a 20 minute job bills one.
func workDuration(started, ended time.Time) int {
	d := ended.Sub(started)
	hours := int(d / time.Hour)
	if d%time.Hour > 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}
