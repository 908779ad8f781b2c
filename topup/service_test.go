package topup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"mitraflow/ledger"
)

func TestCreate_Validation(t *testing.T) {
	svc := NewService(&fakePool{}, &fakeRepo{}, &fakeLedger{})

	if _, err := svc.Create(context.Background(), CreateParams{
		UserType: ledger.ClassUser,
		Amount:   decimal.NewFromInt(50000),
	}); err == nil {
		t.Fatal("expected error for missing user id")
	}

	if _, err := svc.Create(context.Background(), CreateParams{
		UserID:   "u1",
		UserType: "vendor",
		Amount:   decimal.NewFromInt(50000),
	}); err == nil {
		t.Fatal("expected error for invalid account class")
	}

	_, err := svc.Create(context.Background(), CreateParams{
		UserID:   "u1",
		UserType: ledger.ClassUser,
		Amount:   decimal.NewFromInt(-1),
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestApprove_CreditsExactAmount(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{request: Request{
		ID:       "t1",
		UserID:   "m1",
		UserType: ledger.ClassMitra,
		Amount:   decimal.NewFromInt(75000),
		Status:   StatusPending,
	}}
	store := &fakeLedger{}
	svc := NewService(pool, repo, store)

	req, err := svc.Approve(context.Background(), "t1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if req.Status != StatusApproved {
		t.Errorf("expected approved, got %s", req.Status)
	}
	if !store.credited.Equal(decimal.NewFromInt(75000)) {
		t.Errorf("expected credit of 75000, got %s", store.credited)
	}
	if store.creditedID != "m1" || store.creditedClass != ledger.ClassMitra {
		t.Errorf("credit hit wrong account: %s/%s", store.creditedID, store.creditedClass)
	}
	if !pool.tx.committed {
		t.Errorf("expected commit")
	}
}

func TestApprove_ReplayDoesNotDoubleCredit(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{request: Request{
		ID:       "t1",
		UserID:   "m1",
		UserType: ledger.ClassMitra,
		Amount:   decimal.NewFromInt(75000),
		Status:   StatusApproved,
	}}
	store := &fakeLedger{}
	svc := NewService(pool, repo, store)

	_, err := svc.Approve(context.Background(), "t1")
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if store.creditCalled {
		t.Errorf("replay must not credit again")
	}
	if pool.tx.committed {
		t.Errorf("expected rollback, not commit")
	}
}

func TestReject_NoLedgerEffect(t *testing.T) {
	pool := &fakePool{}
	repo := &fakeRepo{request: Request{
		ID:       "t1",
		UserID:   "u1",
		UserType: ledger.ClassUser,
		Amount:   decimal.NewFromInt(30000),
		Status:   StatusPending,
	}}
	store := &fakeLedger{}
	svc := NewService(pool, repo, store)

	req, err := svc.Reject(context.Background(), "t1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if req.Status != StatusRejected {
		t.Errorf("expected rejected, got %s", req.Status)
	}
	if store.creditCalled {
		t.Errorf("reject must not touch the ledger")
	}
	if !pool.tx.committed {
		t.Errorf("expected commit")
	}
}

func TestReject_AlreadyProcessed(t *testing.T) {
	repo := &fakeRepo{request: Request{ID: "t1", Status: StatusRejected}}
	svc := NewService(&fakePool{}, repo, &fakeLedger{})

	if _, err := svc.Reject(context.Background(), "t1"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

type fakeRepo struct {
	request   Request
	processed Status
}

func (f *fakeRepo) Create(ctx context.Context, params CreateParams) (Request, error) {
	return Request{ID: "t1", UserID: params.UserID, UserType: params.UserType, Amount: params.Amount, Status: StatusPending}, nil
}

func (f *fakeRepo) List(ctx context.Context, filters Filters) ([]Request, error) {
	return []Request{f.request}, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error) {
	return f.request, nil
}

func (f *fakeRepo) MarkProcessed(ctx context.Context, tx pgx.Tx, id string, status Status, at time.Time) (Request, error) {
	f.processed = status
	out := f.request
	out.Status = status
	out.ProcessedAt = &at
	return out, nil
}

type fakeLedger struct {
	creditCalled  bool
	credited      decimal.Decimal
	creditedID    string
	creditedClass ledger.AccountClass
}

func (f *fakeLedger) Credit(ctx context.Context, tx pgx.Tx, accountID string, class ledger.AccountClass, amount decimal.Decimal) (decimal.Decimal, error) {
	f.creditCalled = true
	f.credited = amount
	f.creditedID = accountID
	f.creditedClass = class
	return amount, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
