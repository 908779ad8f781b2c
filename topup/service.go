package topup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"mitraflow/ledger"
)

var (
	// ErrAlreadyProcessed signals the request has already been approved or
	// rejected; processed requests are terminal.
	ErrAlreadyProcessed = errors.New("topup: request already processed")
	// ErrInvalidAmount signals a non-positive requested amount.
	ErrInvalidAmount = errors.New("topup: amount must be positive")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore is the slice of the ledger the approval engine needs.
type LedgerStore interface {
	Credit(ctx context.Context, tx pgx.Tx, accountID string, class ledger.AccountClass, amount decimal.Decimal) (decimal.Decimal, error)
}

// Service is the top-up approval engine: the only writer of request status,
// and the only path that credits a ledger balance.
type Service struct {
	pool   TxBeginner
	repo   Repository
	ledger LedgerStore
	now    func() time.Time
}

func NewService(pool TxBeginner, repo Repository, ledgerStore LedgerStore) *Service {
	return &Service{
		pool:   pool,
		repo:   repo,
		ledger: ledgerStore,
		now:    time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create records a new pending top-up request.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.UserID == "" {
		return Request{}, fmt.Errorf("topup: missing user id")
	}
	if !ledger.ValidClass(params.UserType) {
		return Request{}, fmt.Errorf("topup: invalid account class %q", params.UserType)
	}
	if !params.Amount.IsPositive() {
		return Request{}, ErrInvalidAmount
	}

	return s.repo.Create(ctx, params)
}

// List returns requests matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Request, error) {
	return s.repo.List(ctx, filters)
}

// Approve credits the requested amount to the requester's ledger balance and
// finalizes the request. Only pending requests can be approved; a replay
// fails with ErrAlreadyProcessed and the balance is credited exactly once.
func (s *Service) Approve(ctx context.Context, requestID string) (Request, error) {
	return s.process(ctx, requestID, StatusApproved)
}

// Reject finalizes the request without touching any ledger balance.
func (s *Service) Reject(ctx context.Context, requestID string) (Request, error) {
	return s.process(ctx, requestID, StatusRejected)
}

func (s *Service) process(ctx context.Context, requestID string, status Status) (Request, error) {
	if requestID == "" {
		return Request{}, fmt.Errorf("topup: missing request id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("topup: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := s.repo.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrAlreadyProcessed
	}

	if status == StatusApproved {
		if _, err := s.ledger.Credit(ctx, tx, req.UserID, req.UserType, req.Amount); err != nil {
			return Request{}, err
		}
	}

	updated, err := s.repo.MarkProcessed(ctx, tx, requestID, status, s.now())
	if err != nil {
		return Request{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("topup: commit: %w", err)
	}
	return updated, nil
}
