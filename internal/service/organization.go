package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
	"github.com/KavyaGunapati/TypeFromProject/pkg/pagination"
)

// maxOrganizationNameLength is the longest organization name accepted.
const maxOrganizationNameLength = 150

// OrganizationService implements organization management.
type OrganizationService struct {
	orgs   repository.OrganizationRepository
	logger *slog.Logger
}

// NewOrganizationService creates a new organization service.
func NewOrganizationService(orgs repository.OrganizationRepository, logger *slog.Logger) *OrganizationService {
	return &OrganizationService{orgs: orgs, logger: logger}
}

// UpdateOrganizationInput holds the optional fields of an organization update.
type UpdateOrganizationInput struct {
	Name      *string
	IsDeleted *bool
}

// Create adds an organization. Names are unique among non-deleted organizations.
func (s *OrganizationService) Create(ctx context.Context, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if err := validateOrganizationName(name); err != nil {
		return nil, err
	}

	taken, err := s.orgs.NameTaken(ctx, name, 0)
	if err != nil {
		return nil, fmt.Errorf("check organization name: %w", err)
	}
	if taken {
		s.logger.WarnContext(ctx, "organization already exists", slog.String("name", name))
		return nil, apperrors.Conflict(fmt.Sprintf("Organization '%s' already exists.", name))
	}

	org := &domain.Organization{Name: name}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	s.logger.InfoContext(ctx, "organization created",
		slog.Int64("organization_id", org.ID),
		slog.String("name", org.Name),
	)

	return org, nil
}

// Get returns an organization by id, deleted or not.
func (s *OrganizationService) Get(ctx context.Context, id int64) (*domain.Organization, error) {
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, organizationNotFound()
		}
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return org, nil
}

// List returns a page of organizations.
func (s *OrganizationService) List(ctx context.Context, includeDeleted bool, params pagination.Params) (pagination.Result[domain.Organization], error) {
	orgs, total, err := s.orgs.List(ctx, includeDeleted, params.PerPage, params.Offset)
	if err != nil {
		return pagination.Result[domain.Organization]{}, fmt.Errorf("list organizations: %w", err)
	}
	return pagination.NewResult(orgs, total, params), nil
}

// Update renames and/or flips the deletion flag of an organization. A blank
// name leaves the name unchanged.
func (s *OrganizationService) Update(ctx context.Context, id int64, in UpdateOrganizationInput) (*domain.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	wasDeleted := org.IsDeleted
	renamed := false
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" && name != org.Name {
			if err := validateOrganizationName(name); err != nil {
				return nil, err
			}
			org.Name = name
			renamed = true
		}
	}
	if in.IsDeleted != nil {
		org.IsDeleted = *in.IsDeleted
	}

	// A live organization must not share its name with another live one.
	if !org.IsDeleted && (renamed || wasDeleted) {
		taken, err := s.orgs.NameTaken(ctx, org.Name, org.ID)
		if err != nil {
			return nil, fmt.Errorf("check organization name: %w", err)
		}
		if taken {
			s.logger.WarnContext(ctx, "organization name in use", slog.String("name", org.Name))
			return nil, apperrors.Conflict(fmt.Sprintf("Another organization already uses '%s'.", org.Name))
		}
	}

	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}

	s.logger.InfoContext(ctx, "organization updated", slog.Int64("organization_id", org.ID))

	return org, nil
}

// SoftDelete marks an organization deleted. Deleting an already deleted
// organization succeeds; the boolean reports that case.
func (s *OrganizationService) SoftDelete(ctx context.Context, id int64) (alreadyDeleted bool, err error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if org.IsDeleted {
		return true, nil
	}

	org.IsDeleted = true
	if err := s.orgs.Update(ctx, org); err != nil {
		return false, fmt.Errorf("soft delete organization: %w", err)
	}

	s.logger.InfoContext(ctx, "organization soft deleted", slog.Int64("organization_id", id))

	return false, nil
}

func validateOrganizationName(name string) error {
	if name == "" {
		return apperrors.InvalidInput("organization name is required")
	}
	if len([]rune(name)) > maxOrganizationNameLength {
		return apperrors.InvalidInput(fmt.Sprintf("organization name must be at most %d characters", maxOrganizationNameLength))
	}
	return nil
}

func organizationNotFound() *apperrors.AppError {
	return notFound("Organization not found.")
}

func notFound(message string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}
}
