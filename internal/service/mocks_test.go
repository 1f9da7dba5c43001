package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	"github.com/KavyaGunapati/TypeFromProject/internal/credential"
	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
)

// --- Mock Credential Store ---

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockCredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockCredentialStore) VerifyPassword(ctx context.Context, user *domain.User, password string) bool {
	args := m.Called(ctx, user, password)
	return args.Bool(0)
}

func (m *mockCredentialStore) CreateIdentity(ctx context.Context, in credential.NewIdentity) (*domain.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockCredentialStore) GetRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Role), args.Error(1)
}

func (m *mockCredentialStore) EnsureRoleExists(ctx context.Context, role domain.Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *mockCredentialStore) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

// --- Mock Refresh Token Repository ---

type mockRefreshTokenRepository struct {
	mock.Mock
}

func (m *mockRefreshTokenRepository) Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (int64, error) {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRefreshTokenRepository) FindActive(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRefreshTokenRepository) Rotate(ctx context.Context, presentedHash, nextHash string, nextExpiresAt, now time.Time) (*repository.Rotation, error) {
	args := m.Called(ctx, presentedHash, nextHash, nextExpiresAt, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Rotation), args.Error(1)
}

// --- Stub Token Issuer ---

type stubIssuer struct {
	issueErr   error
	refreshErr error
	refreshes  []string
	n          int
}

func (i *stubIssuer) Issue(subject auth.TokenSubject) (string, time.Time, error) {
	if i.issueErr != nil {
		return "", time.Time{}, i.issueErr
	}
	return "access-for-" + subject.UserID, testNow.Add(15 * time.Minute), nil
}

func (i *stubIssuer) IssueRefreshOpaque() (string, time.Time, error) {
	if i.refreshErr != nil {
		return "", time.Time{}, i.refreshErr
	}
	tok := "refresh-token"
	if i.n < len(i.refreshes) {
		tok = i.refreshes[i.n]
	}
	i.n++
	return tok, testNow.Add(14 * 24 * time.Hour), nil
}

// --- Test Helpers ---

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newMockedSessionService(creds *mockCredentialStore, tokens *mockRefreshTokenRepository, issuer *stubIssuer) *SessionService {
	return NewSessionService(creds, tokens, issuer, nil, newTestLogger()).
		WithClock(func() time.Time { return testNow })
}

func activeUser() *domain.User {
	return &domain.User{
		ID:           "u-1",
		Email:        "ada@example.com",
		FullName:     "Ada Lovelace",
		PasswordHash: "hash",
		IsActive:     true,
	}
}
