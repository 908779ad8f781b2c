package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mitraflow/order"
)

var (
	// ErrNotFound signals the application id does not exist.
	ErrNotFound = errors.New("onboarding: application not found")
	// ErrEmailTaken signals the chosen login email is already registered.
	ErrEmailTaken = errors.New("onboarding: email already registered")
)

// Repository handles data access for mitra applications. Approval writes are
// tx-scoped so the new account, its zero ledger row and the application
// status land atomically.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Application, error)
	List(ctx context.Context, filters Filters) ([]Application, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Application, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string, status Status, at time.Time) (Application, error)
	CreateMitraUser(ctx context.Context, tx pgx.Tx, params MitraUserParams) (string, error)
}

// MitraUserParams contains the write parameters for the account an approval
// creates, copied from the application plus the admin-chosen credentials.
type MitraUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Address      string
	Skills       []order.ServiceType
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const applicationColumns = `id, name, phone, address, skills::text[], reason, status::text, applied_at, processed_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Application, error) {
	query := fmt.Sprintf(`
		INSERT INTO mitra_applications (name, phone, address, skills, reason)
		VALUES ($1, $2, $3, $4::service_type[], $5)
		RETURNING %s
	`, applicationColumns)

	app, err := scanApplication(r.pool.QueryRow(ctx, query,
		params.Name,
		params.Phone,
		params.Address,
		serviceNames(params.Skills),
		params.Reason,
	))
	if err != nil {
		return Application{}, fmt.Errorf("onboarding: insert application: %w", err)
	}
	return app, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM mitra_applications`, applicationColumns)
	args := []any{}
	if filters.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filters.Status)
	}
	query += ` ORDER BY applied_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("onboarding: list applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("onboarding: scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("onboarding: iterate applications: %w", err)
	}
	return apps, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM mitra_applications WHERE id = $1 FOR UPDATE`, applicationColumns)

	app, err := scanApplication(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("onboarding: get for update: %w", err)
	}
	return app, nil
}

func (r *PGRepository) MarkProcessed(ctx context.Context, tx pgx.Tx, id string, status Status, at time.Time) (Application, error) {
	query := fmt.Sprintf(`
		UPDATE mitra_applications
		SET status = $2::request_status, processed_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING %s
	`, applicationColumns)

	app, err := scanApplication(tx.QueryRow(ctx, query, id, status, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("onboarding: mark processed: %w", err)
	}
	return app, nil
}

// CreateMitraUser inserts the new partner account inside the approval
// transaction and returns its id.
func (r *PGRepository) CreateMitraUser(ctx context.Context, tx pgx.Tx, params MitraUserParams) (string, error) {
	const query = `
		INSERT INTO users (email, name, phone, password_hash, role, address, skills)
		VALUES ($1, $2, $3, $4, 'mitra', $5, $6::service_type[])
		RETURNING id
	`

	var id string
	err := tx.QueryRow(ctx, query,
		params.Email,
		params.Name,
		params.Phone,
		params.PasswordHash,
		params.Address,
		serviceNames(params.Skills),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("onboarding: create mitra user: %w", err)
	}
	return id, nil
}

func scanApplication(row pgx.Row) (Application, error) {
	var (
		app    Application
		skills []string
	)
	err := row.Scan(
		&app.ID,
		&app.Name,
		&app.Phone,
		&app.Address,
		&skills,
		&app.Reason,
		&app.Status,
		&app.AppliedAt,
		&app.ProcessedAt,
	)
	if err != nil {
		return Application{}, err
	}

	app.Skills = make([]order.ServiceType, 0, len(skills))
	for _, s := range skills {
		app.Skills = append(app.Skills, order.ServiceType(s))
	}
	return app, nil
}

func serviceNames(skills []order.ServiceType) []string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, string(s))
	}
	return names
}
