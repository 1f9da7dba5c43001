package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository/memory"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
	"github.com/KavyaGunapati/TypeFromProject/pkg/pagination"
)

type membershipFixture struct {
	svc   *MembershipService
	orgs  *OrganizationService
	users *mockCredentialStore
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()
	orgRepo := memory.NewOrganizationRepository()
	users := &mockCredentialStore{}
	return &membershipFixture{
		svc:   NewMembershipService(memory.NewMembershipRepository(), orgRepo, users, newTestLogger()),
		orgs:  NewOrganizationService(orgRepo, newTestLogger()),
		users: users,
	}
}

func (f *membershipFixture) org(t *testing.T, name string) *domain.Organization {
	t.Helper()
	org, err := f.orgs.Create(context.Background(), name)
	require.NoError(t, err)
	return org
}

func TestMembershipService_Assign(t *testing.T) {
	f := newMembershipFixture(t)
	org := f.org(t, "Acme")
	f.users.On("FindByID", mock.Anything, "u-1").Return(activeUser(), nil)

	m, err := f.svc.Assign(context.Background(), org.ID, "u-1", "Editor")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, m.Role)
	assert.Equal(t, org.ID, m.OrganizationID)
	assert.NotZero(t, m.ID)

	_, err = f.svc.Assign(context.Background(), org.ID, "u-1", "Viewer")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "User already assigned to this organization.")
}

func TestMembershipService_Assign_Rejections(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	live := f.org(t, "Live")
	gone := f.org(t, "Gone")
	_, err := f.orgs.SoftDelete(ctx, gone.ID)
	require.NoError(t, err)

	inactive := activeUser()
	inactive.ID = "u-inactive"
	inactive.IsActive = false
	f.users.On("FindByID", mock.Anything, "u-1").Return(activeUser(), nil)
	f.users.On("FindByID", mock.Anything, "u-inactive").Return(inactive, nil)
	f.users.On("FindByID", mock.Anything, "u-missing").Return(nil, apperrors.ErrNotFound)

	tests := []struct {
		name    string
		orgID   int64
		userID  string
		role    string
		wantErr error
		wantMsg string
	}{
		{"unknown organization", 999, "u-1", "Owner", apperrors.ErrNotFound, "Organization not found or deleted."},
		{"deleted organization", gone.ID, "u-1", "Owner", apperrors.ErrNotFound, "Organization not found or deleted."},
		{"unknown user", live.ID, "u-missing", "Owner", apperrors.ErrNotFound, "User not found or inactive."},
		{"inactive user", live.ID, "u-inactive", "Owner", apperrors.ErrNotFound, "User not found or inactive."},
		{"identity role", live.ID, "u-1", "User", apperrors.ErrInvalidInput, "Invalid role."},
		{"unknown role", live.ID, "u-1", "Superuser", apperrors.ErrInvalidInput, "Invalid role."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Assign(ctx, tt.orgID, tt.userID, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMembershipService_Assign_LookupFailure(t *testing.T) {
	f := newMembershipFixture(t)
	org := f.org(t, "Acme")
	f.users.On("FindByID", mock.Anything, "u-1").Return(nil, errors.New("connection refused"))

	_, err := f.svc.Assign(context.Background(), org.ID, "u-1", "Owner")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMembershipService_ChangeRoleAndRemove(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	org := f.org(t, "Acme")
	f.users.On("FindByID", mock.Anything, "u-1").Return(activeUser(), nil)

	_, err := f.svc.Assign(ctx, org.ID, "u-1", "Viewer")
	require.NoError(t, err)

	m, err := f.svc.ChangeRole(ctx, org.ID, "u-1", "Admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, m.Role)

	_, err = f.svc.ChangeRole(ctx, org.ID, "u-1", "viewer")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	list, err := f.svc.ListByOrganization(ctx, org.ID, pagination.DefaultParams())
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, domain.RoleAdmin, list.Data[0].Role)

	require.NoError(t, f.svc.Remove(ctx, org.ID, "u-1"))

	err = f.svc.Remove(ctx, org.ID, "u-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "Assignment not found.")

	_, err = f.svc.ChangeRole(ctx, org.ID, "u-1", "Owner")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	empty, err := f.svc.ListByOrganization(ctx, org.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
	assert.Equal(t, 0, empty.TotalCount)
}
