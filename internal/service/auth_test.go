package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"
)

type fakeUserStore struct {
	byID       map[string]*model.User
	byUsername map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:       make(map[string]*model.User),
		byUsername: make(map[string]*model.User),
	}
}

func (f *fakeUserStore) Create(ctx context.Context, id, username, email, passwordHash string) (*model.User, error) {
	if _, exists := f.byUsername[username]; exists {
		return nil, errors.New("duplicate key value violates unique constraint")
	}
	u := &model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.byID[id] = u
	f.byUsername[username] = u
	return u, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errNoRows
	}
	return u, nil
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, errNoRows
	}
	return u, nil
}

type fakeSessionStore struct {
	tokens map[string]string // token hash -> user id
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{tokens: make(map[string]string)}
}

func (f *fakeSessionStore) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	f.tokens[tokenHash] = userID
	return nil
}

func (f *fakeSessionStore) ValidateRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	userID, ok := f.tokens[tokenHash]
	if !ok {
		return "", errNoRows
	}
	return userID, nil
}

func (f *fakeSessionStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

func (f *fakeSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	for hash, uid := range f.tokens {
		if uid == userID {
			delete(f.tokens, hash)
		}
	}
	return nil
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserStore, *fakeSessionStore) {
	t.Helper()
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	return NewAuthService(users, sessions, "test-secret"), users, sessions
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Campus.EDU",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "alice@campus.edu" {
		t.Errorf("expected lowercased email, got %q", reg.User.Email)
	}
	if reg.User.PasswordHash == "hunter22" {
		t.Error("password must not be stored in plain text")
	}

	userID, username, err := svc.ValidateAccessToken(reg.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if userID != reg.User.ID || username != "alice" {
		t.Errorf("token claims mismatch: got (%s, %s)", userID, username)
	}

	login, err := svc.Login(ctx, &model.LoginRequest{Username: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Error("login resolved a different user")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, &model.RegisterRequest{Username: "ab", Password: "hunter22"}); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "12345"}); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"}); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists on duplicate username, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, &model.LoginRequest{Username: "alice", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, &model.LoginRequest{Username: "nobody", Password: "hunter22"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, sessions := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pair, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == reg.RefreshToken {
		t.Error("expected a new refresh token")
	}

	// The spent token is revoked; replaying it fails.
	if _, err := svc.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken on replay, got %v", err)
	}
	// Only the rotated token remains stored.
	if len(sessions.tokens) != 1 {
		t.Errorf("expected exactly one live refresh token, got %d", len(sessions.tokens))
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Logout(ctx, reg.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestLogoutAllRevokesEveryDevice(t *testing.T) {
	svc, _, sessions := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &model.RegisterRequest{Username: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := svc.Login(ctx, &model.LoginRequest{Username: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.LogoutAll(ctx, reg.User.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Errorf("expected all refresh tokens revoked, %d remain", len(sessions.tokens))
	}
	for _, token := range []string{reg.RefreshToken, second.RefreshToken} {
		if _, err := svc.Refresh(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken after logout-all, got %v", err)
		}
	}
}

func TestValidateAccessTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	if _, _, err := svc.ValidateAccessToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	// A token signed with a different secret is rejected.
	other := NewAuthService(newFakeUserStore(), newFakeSessionStore(), "other-secret")
	reg, err := other.Register(context.Background(), &model.RegisterRequest{Username: "mallory", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.ValidateAccessToken(reg.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}
