package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"mitraflow/ledger"
	"mitraflow/order"
)

var (
	// ErrAlreadyProcessed signals the application has already been approved
	// or rejected.
	ErrAlreadyProcessed = errors.New("onboarding: application already processed")
	// ErrWeakPassword signals the chosen login password is too short.
	ErrWeakPassword = errors.New("onboarding: password must be at least 8 characters")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LedgerStore provisions the zero balance row for a freshly approved mitra.
type LedgerStore interface {
	EnsureAccount(ctx context.Context, tx pgx.Tx, accountID string, class ledger.AccountClass) error
}

// Service is the onboarding engine: it owns application status and is the
// only path that turns an application into a live mitra account.
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

// Apply records a new pending mitra application.
func (s *Service) Apply(ctx context.Context, params CreateParams) (Application, error) {
	if strings.TrimSpace(params.Name) == "" || strings.TrimSpace(params.Phone) == "" || strings.TrimSpace(params.Address) == "" {
		return Application{}, fmt.Errorf("onboarding: name, phone and address are required")
	}
	if strings.TrimSpace(params.Reason) == "" {
		return Application{}, fmt.Errorf("onboarding: reason is required")
	}
	if len(params.Skills) == 0 {
		return Application{}, fmt.Errorf("onboarding: at least one skill is required")
	}
	for _, skill := range params.Skills {
		if !order.ValidService(skill) {
			return Application{}, fmt.Errorf("onboarding: unknown skill %q", skill)
		}
	}

	return s.repo.Create(ctx, params)
}

// List returns applications matching the filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Application, error) {
	return s.repo.List(ctx, filters)
}

// ApprovalResult bundles the finalized application with the id of the
// account it produced.
type ApprovalResult struct {
	Application Application
	MitraID     string
}

// Approve promotes a pending application into an active mitra account with
// the given login credentials and a zero ledger balance. The account, its
// ledger row and the application status commit together.
func (s *Service) Approve(ctx context.Context, applicationID, loginEmail, loginPassword string) (ApprovalResult, error) {
	if applicationID == "" {
		return ApprovalResult{}, fmt.Errorf("onboarding: missing application id")
	}
	if strings.TrimSpace(loginEmail) == "" {
		return ApprovalResult{}, fmt.Errorf("onboarding: login email is required")
	}
	if len(loginPassword) < 8 {
		return ApprovalResult{}, ErrWeakPassword
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(loginPassword), bcrypt.DefaultCost)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("onboarding: hash password: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ApprovalResult{}, fmt.Errorf("onboarding: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, err := s.repo.GetForUpdate(ctx, tx, applicationID)
	if err != nil {
		return ApprovalResult{}, err
	}
	if app.Status != StatusPending {
		return ApprovalResult{}, ErrAlreadyProcessed
	}

	mitraID, err := s.repo.CreateMitraUser(ctx, tx, MitraUserParams{
		Email:        strings.TrimSpace(loginEmail),
		PasswordHash: string(passwordHash),
		Name:         app.Name,
		Phone:        app.Phone,
		Address:      app.Address,
		Skills:       app.Skills,
	})
	if err != nil {
		return ApprovalResult{}, err
	}

	if err := s.ledger.EnsureAccount(ctx, tx, mitraID, ledger.ClassMitra); err != nil {
		return ApprovalResult{}, err
	}

	updated, err := s.repo.MarkProcessed(ctx, tx, applicationID, StatusApproved, s.now())
	if err != nil {
		return ApprovalResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ApprovalResult{}, fmt.Errorf("onboarding: commit approval: %w", err)
	}

	return ApprovalResult{Application: updated, MitraID: mitraID}, nil
}

// Reject finalizes the application without creating an account.
func (s *Service) Reject(ctx context.Context, applicationID string) (Application, error) {
	if applicationID == "" {
		return Application{}, fmt.Errorf("onboarding: missing application id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("onboarding: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	app, err := s.repo.GetForUpdate(ctx, tx, applicationID)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, ErrAlreadyProcessed
	}

	updated, err := s.repo.MarkProcessed(ctx, tx, applicationID, StatusRejected, s.now())
	if err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("onboarding: commit rejection: %w", err)
	}
	return updated, nil
}
