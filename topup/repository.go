package topup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the request id does not exist.
var ErrNotFound = errors.New("topup: request not found")

// Repository handles data access for top-up requests.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Request, error)
	List(ctx context.Context, filters Filters) ([]Request, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string, status Status, at time.Time) (Request, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const requestColumns = `id, user_id, user_type::text, amount, status::text, requested_at, processed_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Request, error) {
	query := fmt.Sprintf(`
		INSERT INTO topup_requests (user_id, user_type, amount)
		VALUES ($1, $2::account_class, $3)
		RETURNING %s
	`, requestColumns)

	req, err := scanRequest(r.pool.QueryRow(ctx, query, params.UserID, params.UserType, params.Amount))
	if err != nil {
		return Request{}, fmt.Errorf("topup: insert: %w", err)
	}
	return req, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM topup_requests`, requestColumns)
	where := []string{}
	args := []any{}

	if filters.UserID != "" {
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filters.UserID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filters.Status)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY requested_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("topup: list: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("topup: scan: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topup: iterate: %w", err)
	}
	return requests, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM topup_requests WHERE id = $1 FOR UPDATE`, requestColumns)

	req, err := scanRequest(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("topup: get for update: %w", err)
	}
	return req, nil
}

func (r *PGRepository) MarkProcessed(ctx context.Context, tx pgx.Tx, id string, status Status, at time.Time) (Request, error) {
	query := fmt.Sprintf(`
		UPDATE topup_requests
		SET status = $2::request_status, processed_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, requestColumns)

	req, err := scanRequest(tx.QueryRow(ctx, query, id, status, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("topup: mark processed: %w", err)
	}
	return req, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.UserType,
		&req.Amount,
		&req.Status,
		&req.RequestedAt,
		&req.ProcessedAt,
	)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}
