package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
)

// ErrTokenCollision is returned when a newly issued refresh token digest is
// already stored. With 64 random bytes this indicates a broken entropy
// source and must not be retried.
var ErrTokenCollision = errors.New("refresh token digest collision")

// UserRepository defines the interface for identity persistence operations.
type UserRepository interface {
	// Create inserts a new user. A duplicate email yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalised email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RoleRepository stores role names and identity role assignments.
type RoleRepository interface {
	// EnsureRole creates the role row if it does not exist yet.
	EnsureRole(ctx context.Context, role domain.Role) error

	// AssignRole grants role to the user. Granting an existing role is a no-op.
	AssignRole(ctx context.Context, userID string, role domain.Role) error

	// GetRoleNames returns the raw role names assigned to the user.
	GetRoleNames(ctx context.Context, userID string) ([]string, error)
}

// Rotation is the outcome of a successful refresh token rotation.
type Rotation struct {
	Revoked   domain.RefreshToken
	Successor domain.RefreshToken
}

// RefreshTokenRepository defines the interface for refresh token persistence.
// Tokens are addressed by their SHA-256 digest only.
type RefreshTokenRepository interface {
	// Save stores a new active token record and returns its id.
	Save(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (int64, error)

	// FindActive returns the record for tokenHash if it is neither revoked nor
	// expired at now. Anything else yields apperrors.ErrNotFound.
	FindActive(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)

	// Revoke marks the record revoked. Revoking twice is a no-op.
	Revoke(ctx context.Context, id int64) error

	// Rotate atomically revokes the active record for presentedHash and
	// stores its successor for the same user. If the presented record is not
	// active at now, nothing changes and apperrors.ErrNotFound is returned.
	Rotate(ctx context.Context, presentedHash, nextHash string, nextExpiresAt, now time.Time) (*Rotation, error)
}

// OrganizationRepository defines the interface for organization persistence.
type OrganizationRepository interface {
	// Create inserts the organization and sets its ID and CreatedAt.
	Create(ctx context.Context, org *domain.Organization) error

	// GetByID retrieves an organization, deleted or not.
	GetByID(ctx context.Context, id int64) (*domain.Organization, error)

	// NameTaken reports whether a non-deleted organization other than
	// excludeID already uses name. Pass 0 to exclude nothing.
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)

	// List returns a page of organizations and the total count.
	List(ctx context.Context, includeDeleted bool, limit, offset int) ([]domain.Organization, int, error)

	// Update persists the name and deletion flag.
	Update(ctx context.Context, org *domain.Organization) error
}

// MembershipRepository defines the interface for organization role assignments.
type MembershipRepository interface {
	// Create inserts the membership and sets its ID and CreatedAt. A second
	// assignment for the same organization and user yields apperrors.ErrAlreadyExists.
	Create(ctx context.Context, m *domain.Membership) error

	// Get returns the membership of userID in orgID.
	Get(ctx context.Context, orgID int64, userID string) (*domain.Membership, error)

	// ListByOrganization returns a page of memberships and the total count.
	ListByOrganization(ctx context.Context, orgID int64, limit, offset int) ([]domain.Membership, int, error)

	// UpdateRole changes the role of an existing membership.
	UpdateRole(ctx context.Context, orgID int64, userID string, role domain.Role) error

	// Delete removes the membership.
	Delete(ctx context.Context, orgID int64, userID string) error
}
