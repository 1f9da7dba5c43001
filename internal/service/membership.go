package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
	"github.com/KavyaGunapati/TypeFromProject/pkg/pagination"
)

// IdentityLookup resolves identities by id.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// MembershipService assigns organization roles to identities.
type MembershipService struct {
	members    repository.MembershipRepository
	orgs       repository.OrganizationRepository
	identities IdentityLookup
	logger     *slog.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(
	members repository.MembershipRepository,
	orgs repository.OrganizationRepository,
	identities IdentityLookup,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		members:    members,
		orgs:       orgs,
		identities: identities,
		logger:     logger,
	}
}

// Assign gives userID the role in orgID. The organization must be live, the
// identity active, and the identity not yet a member.
func (s *MembershipService) Assign(ctx context.Context, orgID int64, userID, role string) (*domain.Membership, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if org == nil || org.IsDeleted {
		return nil, notFound("Organization not found or deleted.")
	}

	user, err := s.identities.FindByID(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, notFound("User not found or inactive.")
	}

	_, err = s.members.Get(ctx, orgID, userID)
	switch {
	case err == nil:
		s.logger.WarnContext(ctx, "user already assigned to organization",
			slog.String("user_id", userID),
			slog.Int64("organization_id", orgID),
		)
		return nil, apperrors.Conflict("User already assigned to this organization.")
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("get membership: %w", err)
	}

	orgRole, err := parseOrgRole(role)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid organization role",
			slog.String("role", role),
			slog.String("user_id", userID),
		)
		return nil, err
	}

	m := &domain.Membership{OrganizationID: orgID, UserID: userID, Role: orgRole}
	if err := s.members.Create(ctx, m); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict("User already assigned to this organization.")
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.logger.InfoContext(ctx, "assigned organization role",
		slog.String("role", string(m.Role)),
		slog.String("user_id", userID),
		slog.Int64("organization_id", orgID),
	)

	return m, nil
}

// ListByOrganization returns a page of an organization's memberships.
func (s *MembershipService) ListByOrganization(ctx context.Context, orgID int64, params pagination.Params) (pagination.Result[domain.Membership], error) {
	members, total, err := s.members.ListByOrganization(ctx, orgID, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[domain.Membership]{}, fmt.Errorf("list memberships: %w", err)
	}
	return pagination.NewResult(members, total, params), nil
}

// Remove deletes the membership of userID in orgID.
func (s *MembershipService) Remove(ctx context.Context, orgID int64, userID string) error {
	if err := s.members.Delete(ctx, orgID, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return notFound("Assignment not found.")
		}
		return fmt.Errorf("remove membership: %w", err)
	}

	s.logger.InfoContext(ctx, "removed user from organization",
		slog.String("user_id", userID),
		slog.Int64("organization_id", orgID),
	)

	return nil
}

// ChangeRole replaces the role of an existing membership.
func (s *MembershipService) ChangeRole(ctx context.Context, orgID int64, userID, role string) (*domain.Membership, error) {
	m, err := s.members.Get(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, notFound("Assignment not found.")
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	orgRole, err := parseOrgRole(role)
	if err != nil {
		return nil, err
	}

	if err := s.members.UpdateRole(ctx, orgID, userID, orgRole); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, notFound("Assignment not found.")
		}
		return nil, fmt.Errorf("change membership role: %w", err)
	}
	m.Role = orgRole

	s.logger.InfoContext(ctx, "changed organization role",
		slog.String("user_id", userID),
		slog.Int64("organization_id", orgID),
		slog.String("role", string(orgRole)),
	)

	return m, nil
}

func parseOrgRole(role string) (domain.Role, error) {
	r, err := domain.ParseRole(role)
	if err != nil || !domain.IsOrgRole(r) {
		return "", apperrors.InvalidInput("Invalid role.")
	}
	return r, nil
}
