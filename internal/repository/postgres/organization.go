package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/pkg/database"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

// OrganizationRepository implements repository.OrganizationRepository using PostgreSQL.
type OrganizationRepository struct {
	db database.DBTX
}

// NewOrganizationRepository creates a new PostgreSQL-backed organization repository.
func NewOrganizationRepository(db database.DBTX) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create inserts a new organization and fills in its generated fields.
func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (name, is_deleted)
		VALUES ($1, $2)
		RETURNING id, created_at`

	if err := r.db.QueryRow(ctx, query, org.Name, org.IsDeleted).Scan(&org.ID, &org.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("organization", "name", org.Name)
		}
		return fmt.Errorf("insert organization: %w", err)
	}

	return nil
}

// GetByID retrieves an organization by its ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*domain.Organization, error) {
	query := `
		SELECT id, name, is_deleted, created_at
		FROM organizations
		WHERE id = $1`

	var org domain.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name, &org.IsDeleted, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	return &org, nil
}

// NameTaken reports whether another live organization uses name.
func (r *OrganizationRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM organizations
			WHERE name = $1 AND is_deleted = false AND id <> $2
		)`

	var taken bool
	if err := r.db.QueryRow(ctx, query, name, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check organization name: %w", err)
	}

	return taken, nil
}

// List returns a page of organizations ordered by id and the total count.
func (r *OrganizationRepository) List(ctx context.Context, includeDeleted bool, limit, offset int) ([]domain.Organization, int, error) {
	countQuery := `SELECT COUNT(*) FROM organizations WHERE ($1 OR is_deleted = false)`

	var total int
	if err := r.db.QueryRow(ctx, countQuery, includeDeleted).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}

	query := `
		SELECT id, name, is_deleted, created_at
		FROM organizations
		WHERE ($1 OR is_deleted = false)
		ORDER BY id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, includeDeleted, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []domain.Organization{}
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.IsDeleted, &org.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan organization row: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate organization rows: %w", err)
	}

	return orgs, total, nil
}

// Update persists the organization's name and deletion flag.
func (r *OrganizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	query := `UPDATE organizations SET name = $1, is_deleted = $2 WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, org.Name, org.IsDeleted, org.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("organization", "name", org.Name)
		}
		return fmt.Errorf("update organization: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("organization", strconv.FormatInt(org.ID, 10))
	}

	return nil
}

// --- Membership Repository ---

// MembershipRepository implements repository.MembershipRepository using PostgreSQL.
type MembershipRepository struct {
	db database.DBTX
}

// NewMembershipRepository creates a new PostgreSQL-backed membership repository.
func NewMembershipRepository(db database.DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a new membership. The (organization_id, user_id) pair is unique.
func (r *MembershipRepository) Create(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO user_org_roles (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, m.OrganizationID, m.UserID, string(m.Role)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("membership", "user_id", m.UserID)
		}
		return fmt.Errorf("insert membership: %w", err)
	}

	return nil
}

// Get retrieves the membership of a user in an organization.
func (r *MembershipRepository) Get(ctx context.Context, orgID int64, userID string) (*domain.Membership, error) {
	if !validUserID(userID) {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM user_org_roles
		WHERE organization_id = $1 AND user_id = $2`

	var (
		m    domain.Membership
		role string
	)
	err := r.db.QueryRow(ctx, query, orgID, userID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan membership: %w", err)
	}
	m.Role = domain.Role(role)

	return &m, nil
}

// ListByOrganization returns a page of memberships of one organization.
func (r *MembershipRepository) ListByOrganization(ctx context.Context, orgID int64, limit, offset int) ([]domain.Membership, int, error) {
	countQuery := `SELECT COUNT(*) FROM user_org_roles WHERE organization_id = $1`

	var total int
	if err := r.db.QueryRow(ctx, countQuery, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count memberships: %w", err)
	}

	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM user_org_roles
		WHERE organization_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	members := []domain.Membership{}
	for rows.Next() {
		var (
			m    domain.Membership
			role string
		)
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan membership row: %w", err)
		}
		m.Role = domain.Role(role)
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate membership rows: %w", err)
	}

	return members, total, nil
}

// UpdateRole changes the role of an existing membership.
func (r *MembershipRepository) UpdateRole(ctx context.Context, orgID int64, userID string, role domain.Role) error {
	if !validUserID(userID) {
		return apperrors.NotFound("membership", userID)
	}

	query := `UPDATE user_org_roles SET role = $1 WHERE organization_id = $2 AND user_id = $3`

	ct, err := r.db.Exec(ctx, query, string(role), orgID, userID)
	if err != nil {
		return fmt.Errorf("update membership role: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("membership", userID)
	}

	return nil
}

// Delete removes a membership.
func (r *MembershipRepository) Delete(ctx context.Context, orgID int64, userID string) error {
	if !validUserID(userID) {
		return apperrors.NotFound("membership", userID)
	}

	query := `DELETE FROM user_org_roles WHERE organization_id = $1 AND user_id = $2`

	ct, err := r.db.Exec(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("membership", userID)
	}

	return nil
}
