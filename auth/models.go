package auth

import (
	"time"

	"mitraflow/order"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleMitra Role = "mitra"
	RoleAdmin Role = "admin"
)

// User is the domain representation of an account. It mirrors the users table
// and should not include JSON annotations so it can be reused by different
// presentation layers. Balances are not stored here; they live in the ledger
// keyed by account id and class.
type User struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         Role
	Address      *string
	Blocked      bool
	Skills       []order.ServiceType
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains customer registration data supplied by callers.
// Mitra accounts are never registered directly; they are created by the
// onboarding flow when an application is approved.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
// Passwords and block status are never updated through this path.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *string
}
