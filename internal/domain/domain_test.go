package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Roles
// ============================================================================

func TestIsValidRole(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(string(r)), "expected %q to be valid", r)
	}
	assert.False(t, IsValidRole("unknown"))
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("admin"))
}

func TestIsOrgRole(t *testing.T) {
	assert.True(t, IsOrgRole(RoleOwner))
	assert.True(t, IsOrgRole(RoleAdmin))
	assert.False(t, IsOrgRole(RoleUser))
	assert.False(t, IsOrgRole(Role("Superuser")))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Editor ")
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestRoleNames_DropsBlanksAndDuplicates(t *testing.T) {
	got := RoleNames([]Role{RoleUser, "", "  ", RoleAdmin, RoleUser})
	assert.Equal(t, []string{"User", "Admin"}, got)
}

// ============================================================================
// Refresh token active predicate
// ============================================================================

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token RefreshToken
		want  bool
	}{
		{"live", RefreshToken{ExpiresAt: now.Add(time.Hour)}, true},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}, false},
		{"expired", RefreshToken{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", RefreshToken{ExpiresAt: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.IsActive(now))
		})
	}
}

// ============================================================================
// User
// ============================================================================

func TestUser_PasswordHashNeverSerialised(t *testing.T) {
	raw, err := json.Marshal(User{ID: "u1", Email: "a@b.c", PasswordHash: "secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Alice", (&User{FullName: "Alice", Email: "a@b.c"}).DisplayName())
	assert.Equal(t, "a@b.c", (&User{Email: "a@b.c"}).DisplayName())
}
