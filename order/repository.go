package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the order id does not exist.
	ErrNotFound = errors.New("order: not found")
	// ErrStatusConflict signals a conditional transition write matched no row,
	// meaning a concurrent writer moved the order first.
	ErrStatusConflict = errors.New("order: status changed concurrently")
)

// Repository handles data access for orders. Transition writes are
// tx-scoped so the engine can combine them with ledger and blocklist writes.
type Repository interface {
	Create(ctx context.Context, id string, params CreateParams) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error)
	MarkAccepted(ctx context.Context, tx pgx.Tx, id, mitraID string, at time.Time) (Order, error)
	MarkInProgress(ctx context.Context, tx pgx.Tx, id string, at time.Time) (Order, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id string, params CompletionParams) (Order, error)
	MarkCancelled(ctx context.Context, tx pgx.Tx, id string) (Order, error)
	List(ctx context.Context, filters Filters) ([]Order, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = `id, user_id, mitra_id, service::text, status::text, rate, address, description,
	payment_method, total_amount, duration, commission, created_at, accepted_at, started_at, completed_at`

func (r *PGRepository) Create(ctx context.Context, id string, params CreateParams) (Order, error) {
	query := fmt.Sprintf(`
		INSERT INTO orders (id, user_id, service, rate, address, description, payment_method)
		VALUES ($1, $2, $3::service_type, $4, $5, $6, $7)
		RETURNING %s
	`, orderColumns)

	ord, err := scanOrder(r.pool.QueryRow(ctx, query,
		id,
		params.UserID,
		params.Service,
		params.Rate,
		params.Address,
		params.Description,
		params.PaymentMethod,
	))
	if err != nil {
		return Order{}, fmt.Errorf("order: insert: %w", err)
	}
	return ord, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	ord, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get by id: %w", err)
	}
	return ord, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1 FOR UPDATE`, orderColumns)

	ord, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("order: get for update: %w", err)
	}
	return ord, nil
}

// MarkAccepted assigns the mitra and moves the order to accepted. The status
// predicate keeps the write conditional: a concurrent accept that got there
// first leaves no matching row and the caller sees ErrStatusConflict.
func (r *PGRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, id, mitraID string, at time.Time) (Order, error) {
	query := fmt.Sprintf(`
		UPDATE orders
		SET status = 'accepted', mitra_id = $2, accepted_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, orderColumns)

	return r.transition(ctx, tx, query, id, mitraID, at)
}

func (r *PGRepository) MarkInProgress(ctx context.Context, tx pgx.Tx, id string, at time.Time) (Order, error) {
	query := fmt.Sprintf(`
		UPDATE orders
		SET status = 'in_progress', started_at = $2
		WHERE id = $1 AND status = 'accepted'
		RETURNING %s
	`, orderColumns)

	return r.transition(ctx, tx, query, id, at)
}

func (r *PGRepository) MarkCompleted(ctx context.Context, tx pgx.Tx, id string, params CompletionParams) (Order, error) {
	query := fmt.Sprintf(`
		UPDATE orders
		SET status = 'completed',
		    completed_at = $2,
		    duration = $3,
		    total_amount = $4,
		    commission = $5
		WHERE id = $1 AND status = 'in_progress'
		RETURNING %s
	`, orderColumns)

	return r.transition(ctx, tx, query, id, params.CompletedAt, params.Duration, params.TotalAmount, params.Commission)
}

func (r *PGRepository) MarkCancelled(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	query := fmt.Sprintf(`
		UPDATE orders
		SET status = 'cancelled'
		WHERE id = $1 AND status IN ('pending', 'accepted')
		RETURNING %s
	`, orderColumns)

	return r.transition(ctx, tx, query, id)
}

func (r *PGRepository) transition(ctx context.Context, tx pgx.Tx, query string, args ...any) (Order, error) {
	ord, err := scanOrder(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrStatusConflict
		}
		return Order{}, fmt.Errorf("order: transition: %w", err)
	}
	return ord, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Order, error) {
	base := fmt.Sprintf(`SELECT %s FROM orders`, orderColumns)
	where := []string{}
	args := []any{}

	if filters.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filters.UserID)
	}
	if filters.MitraID != "" {
		where = append(where, fmt.Sprintf("mitra_id = $%d", len(args)+1))
		args = append(args, filters.MitraID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filters.Status)
	}

	query := base
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order: scan: %w", err)
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order: iterate: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		ord           Order
		paymentMethod *string
	)
	err := row.Scan(
		&ord.ID,
		&ord.UserID,
		&ord.MitraID,
		&ord.Service,
		&ord.Status,
		&ord.Rate,
		&ord.Address,
		&ord.Description,
		&paymentMethod,
		&ord.TotalAmount,
		&ord.Duration,
		&ord.Commission,
		&ord.CreatedAt,
		&ord.AcceptedAt,
		&ord.StartedAt,
		&ord.CompletedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if paymentMethod != nil {
		pm := PaymentMethod(*paymentMethod)
		ord.PaymentMethod = &pm
	}
	return ord, nil
}
