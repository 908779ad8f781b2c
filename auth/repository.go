package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mitraflow/order"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	ListUsers(ctx context.Context, role Role) ([]User, error)
	UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (User, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         Role
	Address      *string
	Skills       []order.ServiceType
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, phone, password_hash, role, address, is_blocked, skills::text[], created_at, updated_at`

// CreateUser inserts a new user with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO users (email, name, phone, password_hash, role, address, skills)
		VALUES ($1, $2, $3, $4, $5, $6, $7::service_type[])
		RETURNING %s
	`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL,
		params.Email,
		params.Name,
		params.Phone,
		params.PasswordHash,
		params.Role,
		params.Address,
		serviceNames(params.Skills),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// ListUsers returns all users, optionally restricted to one role.
func (r *PGRepository) ListUsers(ctx context.Context, role Role) ([]User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users`, userColumns)
	args := []any{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate users: %w", err)
	}

	return users, nil
}

// UpdateUser applies a partial profile update.
func (r *PGRepository) UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE users
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    address = COALESCE($4, address),
		    updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, updateSQL, userID, update.Name, update.Phone, update.Address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: update user: %w", err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user    User
		address *string
		skills  []string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&address,
		&user.Blocked,
		&skills,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	user.Address = address
	user.Skills = make([]order.ServiceType, 0, len(skills))
	for _, s := range skills {
		user.Skills = append(user.Skills, order.ServiceType(s))
	}
	return user, nil
}

func serviceNames(skills []order.ServiceType) []string {
	if skills == nil {
		return nil
	}
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, string(s))
	}
	return names
}
