package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var manager = Principal{ID: "user-manager", Role: RoleManager}

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "supersafe",
		Name:     "Alice Vendor",
		Role:     RoleVendor,
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, manager, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleVendor {
		t.Fatalf("register: expected role %s got %s", RoleVendor, user.Role)
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

	principal, err := svc.Authenticate(resp.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if principal.ID != user.ID {
		t.Fatalf("authenticate: expected %q got %q", user.ID, principal.ID)
	}
	if principal.Role != RoleVendor {
		t.Fatalf("authenticate: expected role %s got %s", RoleVendor, principal.Role)
	}
}

func TestService_RegisterRequiresManagerOrDalkon(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret")
	req := RegisterRequest{Email: "bob@example.com", Password: "password123", Role: RoleEngineer}

	for _, role := range []Role{RoleEngineer, RoleVendor} {
		_, err := svc.Register(context.Background(), Principal{ID: "u", Role: role}, req)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("role %s: expected ErrForbidden, got %v", role, err)
		}
	}

	if _, err := svc.Register(context.Background(), Principal{ID: "d", Role: RoleDalkon}, req); err != nil {
		t.Fatalf("dalkon register: %v", err)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, manager, RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
		Role:     RoleVendor,
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	_, err = svc.Register(ctx, manager, RegisterRequest{
		Email:    "not-an-email",
		Password: "strongpassword",
		Role:     RoleVendor,
	})
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}

	_, err = svc.Register(ctx, manager, RegisterRequest{
		Email:    "carol@example.com",
		Password: "strongpassword",
		Role:     Role("Auditor"),
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if _, err := svc.Register(ctx, manager, RegisterRequest{
		Email:    "",
		Password: "strongpassword",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	svc := NewService(newFakeRepository(), "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		Name:     "Alice Vendor",
		Role:     RoleVendor,
	}
	if _, err := svc.Register(context.Background(), manager, req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), manager, req); !errors.Is(err, ErrDuplicateEmail) {
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

	if _, err := svc.Register(context.Background(), manager, RegisterRequest{
		Email: "dave@example.com", Password: "correct-horse", Role: RoleEngineer,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = svc.Login(context.Background(), LoginRequest{Email: "dave@example.com", Password: "wrong-horse"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestService_AuthenticateRejectsExpiredAndForeignTokens(t *testing.T) {
	repo := newFakeRepository()
	issuedAt := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(repo, "test-secret").WithTokenTTL(time.Hour).WithClock(func() time.Time { return issuedAt })

	if _, err := svc.Register(context.Background(), manager, RegisterRequest{
		Email: "erin@example.com", Password: "password123", Role: RoleDalkon,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(context.Background(), LoginRequest{Email: "erin@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !resp.ExpiresAt.Equal(issuedAt.Add(time.Hour)) {
		t.Fatalf("expected expiry %s got %s", issuedAt.Add(time.Hour), resp.ExpiresAt)
	}

	svc.WithClock(func() time.Time { return issuedAt.Add(2 * time.Hour) })
	if _, err := svc.Authenticate(resp.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	other := NewService(repo, "other-secret").WithClock(func() time.Time { return issuedAt })
	if _, err := other.Authenticate(resp.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
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
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
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
