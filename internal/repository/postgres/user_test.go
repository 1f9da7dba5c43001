package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/pkg/database"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

const (
	testUserID    = "3f1c2a9e-5b7d-4e8a-9c6f-1a2b3c4d5e6f"
	missingUserID = "00000000-0000-0000-0000-000000000000"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewUserRepository(mock)
	return repo, mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           testUserID,
		Email:        "alice@example.com",
		FullName:     "Alice Smith",
		PhoneNumber:  "+1234567890",
		PasswordHash: "hash-abc",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// userColumns returns the column names scanned by scanUser and inserted by Create.
func userColumns() []string {
	return []string{
		"id", "email", "full_name", "phone_number", "password_hash",
		"is_active", "created_at", "updated_at",
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns()).AddRow(
		u.ID, u.Email, u.FullName, u.PhoneNumber, u.PasswordHash,
		u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestUserRepository_Create_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Email, u.FullName, u.PhoneNumber, u.PasswordHash,
			u.IsActive, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), u)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Email, u.FullName, u.PhoneNumber, u.PasswordHash,
			u.IsActive, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnError(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), u)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists), "expected ErrAlreadyExists, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Email, u.FullName, u.PhoneNumber, u.PasswordHash,
			u.IsActive, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnError(fmt.Errorf("connection refused"))

	err := repo.Create(context.Background(), u)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrAlreadyExists))
	assert.Contains(t, err.Error(), "insert user")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID / GetByEmail
// ---------------------------------------------------------------------------

func TestUserRepository_GetByID_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs(u.ID).
		WillReturnRows(userRow(u))

	got, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.FullName, got.FullName)
	assert.True(t, got.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs(missingUserID).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), missingUserID)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_MalformedID(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	got, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
		WithArgs(u.Email).
		WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// RoleRepository
// ---------------------------------------------------------------------------

func newRoleTestFixture(t *testing.T) (*RoleRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewRoleRepository(mock), mock
}

func TestRoleRepository_EnsureRole(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO roles").
		WithArgs("User").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := repo.EnsureRole(context.Background(), domain.RoleUser)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_AssignRole_Inserted(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u-1", "User").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.AssignRole(context.Background(), "u-1", domain.RoleUser)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_AssignRole_AlreadyAssigned(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u-1", "User").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("User").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.AssignRole(context.Background(), "u-1", domain.RoleUser)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_AssignRole_UnknownRole(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs("u-1", "Admin").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("Admin").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.AssignRole(context.Background(), "u-1", domain.RoleAdmin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_GetRoleNames(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT r.name FROM roles").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("Admin").AddRow("User"))

	names, err := repo.GetRoleNames(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "User"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepository_GetRoleNames_Empty(t *testing.T) {
	repo, mock := newRoleTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT r.name FROM roles").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}))

	names, err := repo.GetRoleNames(context.Background(), "u-1")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
	assert.True(t, isUniqueViolation(errors.New("duplicate key (SQLSTATE 23505)")))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
