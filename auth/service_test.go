package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "budi@example.com",
		Password: "supersafe",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleUser {
		t.Fatalf("register: expected default role %s got %s", RoleUser, user.Role)
	}
	if user.PasswordHash == req.Password {
		t.Fatal("register: password stored in plaintext")
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("login: expected user id %q got %q", user.ID, resp.User.ID)
	}

	tokenUserID, tokenRole, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if tokenUserID != user.ID {
		t.Fatalf("verify token: expected %q got %q", user.ID, tokenUserID)
	}
	if tokenRole != RoleUser {
		t.Fatalf("verify token: expected role %s got %s", RoleUser, tokenRole)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "budi@example.com",
		Password: "short",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		Name:     "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestService_RegisterAlwaysCreatesCustomer(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "budi@example.com",
		Password: "strongpassword",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	})
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if user.Role != RoleUser {
		t.Fatalf("expected role %s, got %s", RoleUser, user.Role)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "budi@example.com",
		Password: "strongpassword",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "budi@example.com",
		Password: "strongpassword",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "budi@example.com",
		Password: "wrongpassword",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestService_VerifyTokenRejectsForeignSecret(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "budi@example.com",
		Password: "strongpassword",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "budi@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	other := NewService(repo, "different-secret")
	if _, _, err := other.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestService_UpdateProfile(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "budi@example.com",
		Password: "strongpassword",
		Name:     "Budi Customer",
		Phone:    "+628123456789",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	newName := "Budi Santoso"
	newAddress := "Jl. Thamrin 10"
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdate{
		Name:    &newName,
		Address: &newAddress,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != newName {
		t.Fatalf("expected name %q, got %q", newName, updated.Name)
	}
	if updated.Address == nil || *updated.Address != newAddress {
		t.Fatalf("expected address %q, got %v", newAddress, updated.Address)
	}
	if updated.Phone != user.Phone {
		t.Fatalf("expected phone untouched, got %q", updated.Phone)
	}

	empty := "  "
	if _, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdate{Name: &empty}); err == nil {
		t.Fatal("expected validation error for blank name")
	}
}

func TestService_ListUsersInvalidRole(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret")

	if _, err := svc.ListUsers(context.Background(), Role("superuser")); err == nil {
		t.Fatal("expected error for unknown role filter")
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	usersByID    map[string]User
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		usersByID:    make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++

	user := User{
		ID:           id,
		Email:        params.Email,
		Name:         params.Name,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		Address:      params.Address,
		Skills:       params.Skills,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(user.Email)] = user
	f.usersByID[user.ID] = user

	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) ListUsers(ctx context.Context, role Role) ([]User, error) {
	users := []User{}
	for _, user := range f.usersByID {
		if role != "" && user.Role != role {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeRepository) UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.Address != nil {
		user.Address = update.Address
	}
	user.UpdatedAt = time.Now().UTC()

	f.usersByID[userID] = user
	f.usersByEmail[strings.ToLower(user.Email)] = user
	return user, nil
}
