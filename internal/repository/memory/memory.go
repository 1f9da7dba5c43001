// Package memory provides map-backed repositories for development mode and
// tests. Every repository serialises access with its own mutex and hands out
// copies, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

// UserRepository implements repository.UserRepository using in-memory maps.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a copy of u. Emails are unique.
func (r *UserRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return apperrors.AlreadyExists("user", "email", u.Email)
	}
	if _, exists := r.byID[u.ID]; exists {
		return apperrors.AlreadyExists("user", "id", u.ID)
	}

	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

// GetByID returns a copy of the user with the given id.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByEmail returns a copy of the user with the given email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

// --- Roles ---

// RoleRepository implements repository.RoleRepository using in-memory maps.
type RoleRepository struct {
	mu          sync.RWMutex
	roles       map[domain.Role]struct{}
	assignments map[string][]domain.Role
}

// NewRoleRepository creates an empty in-memory role repository.
func NewRoleRepository() *RoleRepository {
	return &RoleRepository{
		roles:       make(map[domain.Role]struct{}),
		assignments: make(map[string][]domain.Role),
	}
}

// EnsureRole records the role name.
func (r *RoleRepository) EnsureRole(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roles[role] = struct{}{}
	return nil
}

// AssignRole grants an existing role to the user.
func (r *RoleRepository) AssignRole(_ context.Context, userID string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[role]; !ok {
		return apperrors.NotFound("role", string(role))
	}
	for _, held := range r.assignments[userID] {
		if held == role {
			return nil
		}
	}
	r.assignments[userID] = append(r.assignments[userID], role)
	return nil
}

// GetRoleNames returns the user's role names sorted by name.
func (r *RoleRepository) GetRoleNames(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.assignments[userID]))
	for _, role := range r.assignments[userID] {
		names = append(names, string(role))
	}
	sort.Strings(names)
	return names, nil
}

// --- Refresh tokens ---

// RefreshTokenRepository implements repository.RefreshTokenRepository.
// Rotate holds the write lock across the check and both writes, which gives
// the same single-winner behaviour as the SQL compare-and-swap.
type RefreshTokenRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.RefreshToken
	byHash map[string]int64
	now    func() time.Time
}

// NewRefreshTokenRepository creates an empty in-memory refresh token repository.
func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{
		byID:   make(map[int64]*domain.RefreshToken),
		byHash: make(map[string]int64),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save stores a new active record. Reusing a digest is ErrTokenCollision.
func (r *RefreshTokenRepository) Save(_ context.Context, userID, tokenHash string, expiresAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, err := r.insertLocked(userID, tokenHash, expiresAt)
	if err != nil {
		return 0, err
	}
	return rt.ID, nil
}

// FindActive returns a copy of the record for tokenHash if it is active at now.
func (r *RefreshTokenRepository) FindActive(_ context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.activeLocked(tokenHash, now)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

// Revoke marks the record revoked. Unknown ids are ignored.
func (r *RefreshTokenRepository) Revoke(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.byID[id]; ok {
		rt.IsRevoked = true
	}
	return nil
}

// Rotate revokes the presented record and stores its successor.
func (r *RefreshTokenRepository) Rotate(_ context.Context, presentedHash, nextHash string, nextExpiresAt, now time.Time) (*repository.Rotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.activeLocked(presentedHash, now)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	next, err := r.insertLocked(old.UserID, nextHash, nextExpiresAt)
	if err != nil {
		return nil, err
	}
	old.IsRevoked = true

	return &repository.Rotation{Revoked: *old, Successor: *next}, nil
}

func (r *RefreshTokenRepository) activeLocked(tokenHash string, now time.Time) (*domain.RefreshToken, bool) {
	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, false
	}
	rt := r.byID[id]
	if !rt.IsActive(now) {
		return nil, false
	}
	return rt, true
}

func (r *RefreshTokenRepository) insertLocked(userID, tokenHash string, expiresAt time.Time) (*domain.RefreshToken, error) {
	if _, taken := r.byHash[tokenHash]; taken {
		return nil, repository.ErrTokenCollision
	}
	r.nextID++
	rt := &domain.RefreshToken{
		ID:        r.nextID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	r.byID[rt.ID] = rt
	r.byHash[tokenHash] = rt.ID
	cp := *rt
	return &cp, nil
}

// --- Organizations ---

// OrganizationRepository implements repository.OrganizationRepository.
type OrganizationRepository struct {
	mu     sync.RWMutex
	nextID int64
	orgs   map[int64]*domain.Organization
}

// NewOrganizationRepository creates an empty in-memory organization repository.
func NewOrganizationRepository() *OrganizationRepository {
	return &OrganizationRepository{orgs: make(map[int64]*domain.Organization)}
}

// Create stores the organization and assigns its id.
func (r *OrganizationRepository) Create(_ context.Context, org *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	org.ID = r.nextID
	org.CreatedAt = time.Now().UTC()
	cp := *org
	r.orgs[org.ID] = &cp
	return nil
}

// GetByID returns a copy of the organization.
func (r *OrganizationRepository) GetByID(_ context.Context, id int64) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.orgs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

// NameTaken reports whether another live organization uses name.
func (r *OrganizationRepository) NameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, org := range r.orgs {
		if org.Name == name && !org.IsDeleted && org.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// List returns a page of organizations ordered by id.
func (r *OrganizationRepository) List(_ context.Context, includeDeleted bool, limit, offset int) ([]domain.Organization, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Organization, 0, len(r.orgs))
	for _, org := range r.orgs {
		if includeDeleted || !org.IsDeleted {
			all = append(all, *org)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return page(all, limit, offset), len(all), nil
}

// Update replaces the stored name and deletion flag.
func (r *OrganizationRepository) Update(_ context.Context, org *domain.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orgs[org.ID]
	if !ok {
		return apperrors.NotFound("organization", strconv.FormatInt(org.ID, 10))
	}
	stored.Name = org.Name
	stored.IsDeleted = org.IsDeleted
	return nil
}

// --- Memberships ---

type membershipKey struct {
	orgID  int64
	userID string
}

// MembershipRepository implements repository.MembershipRepository.
type MembershipRepository struct {
	mu      sync.RWMutex
	nextID  int64
	members map[membershipKey]*domain.Membership
}

// NewMembershipRepository creates an empty in-memory membership repository.
func NewMembershipRepository() *MembershipRepository {
	return &MembershipRepository{members: make(map[membershipKey]*domain.Membership)}
}

// Create stores a membership. One membership per organization and user.
func (r *MembershipRepository) Create(_ context.Context, m *domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := membershipKey{m.OrganizationID, m.UserID}
	if _, exists := r.members[key]; exists {
		return apperrors.AlreadyExists("membership", "user_id", m.UserID)
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now().UTC()
	cp := *m
	r.members[key] = &cp
	return nil
}

// Get returns a copy of the membership.
func (r *MembershipRepository) Get(_ context.Context, orgID int64, userID string) (*domain.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[membershipKey{orgID, userID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// ListByOrganization returns a page of one organization's memberships ordered by id.
func (r *MembershipRepository) ListByOrganization(_ context.Context, orgID int64, limit, offset int) ([]domain.Membership, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.Membership
	for key, m := range r.members {
		if key.orgID == orgID {
			all = append(all, *m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return page(all, limit, offset), len(all), nil
}

// UpdateRole changes the role of an existing membership.
func (r *MembershipRepository) UpdateRole(_ context.Context, orgID int64, userID string, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[membershipKey{orgID, userID}]
	if !ok {
		return apperrors.NotFound("membership", userID)
	}
	m.Role = role
	return nil
}

// Delete removes a membership.
func (r *MembershipRepository) Delete(_ context.Context, orgID int64, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := membershipKey{orgID, userID}
	if _, ok := r.members[key]; !ok {
		return apperrors.NotFound("membership", userID)
	}
	delete(r.members, key)
	return nil
}

// page slices items by limit and offset. A non-positive limit returns everything after offset.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
