package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

// DefaultBcryptCost is the cost factor for bcrypt password hashing.
const DefaultBcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

// PolicyError lists every rule a new identity failed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Violations, " ")
}

// NewIdentity holds the fields of an account to create.
type NewIdentity struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
}

// Store is the credential store: identities, password verification and role
// assignments.
type Store struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	cache  *RoleCache
	cost   int
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a credential store. cache may be nil.
func NewStore(users repository.UserRepository, roles repository.RoleRepository, cache *RoleCache, logger *slog.Logger) *Store {
	return &Store{
		users:  users,
		roles:  roles,
		cache:  cache,
		cost:   DefaultBcryptCost,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithBcryptCost returns the store with a different hashing cost.
func (s *Store) WithBcryptCost(cost int) *Store {
	s.cost = cost
	return s
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail returns the identity registered under email, or apperrors.ErrNotFound.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return u, nil
}

// FindByID returns the identity with the given id, or apperrors.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return u, nil
}

// VerifyPassword reports whether password matches the stored hash.
func (s *Store) VerifyPassword(ctx context.Context, u *domain.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		s.logger.WarnContext(ctx, "password hash unusable",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}
	return false
}

// CreateIdentity validates the password policy, hashes the password and
// stores an active identity. Policy failures are returned as *PolicyError.
func (s *Store) CreateIdentity(ctx context.Context, in NewIdentity) (*domain.User, error) {
	email := NormalizeEmail(in.Email)

	var violations []string
	if email == "" {
		violations = append(violations, "Email is required.")
	}
	violations = append(violations, passwordViolations(in.Password)...)
	if len(violations) > 0 {
		return nil, &PolicyError{Violations: violations}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		PasswordHash: string(hashed),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	return u, nil
}

// EnsureRoleExists provisions a role row the first time it is needed.
func (s *Store) EnsureRoleExists(ctx context.Context, role domain.Role) error {
	if !domain.IsValidRole(string(role)) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}
	if err := s.roles.EnsureRole(ctx, role); err != nil {
		return fmt.Errorf("ensure role: %w", err)
	}
	return nil
}

// AssignRole grants role to the identity and drops its cached roles.
func (s *Store) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	if !domain.IsValidRole(string(role)) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}
	if err := s.roles.AssignRole(ctx, userID, role); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate role cache",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// GetRoles returns the identity's recognised roles. Unknown stored names are
// dropped. Cache failures fall back to the repository.
func (s *Store) GetRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	if s.cache != nil {
		names, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "role cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			return s.parseRoles(ctx, userID, names), nil
		}
	}

	names, err := s.roles.GetRoleNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}

	roles := s.parseRoles(ctx, userID, names)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, domain.RoleNames(roles)); err != nil {
			s.logger.WarnContext(ctx, "role cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return roles, nil
}

func (s *Store) parseRoles(ctx context.Context, userID string, names []string) []domain.Role {
	roles := make([]domain.Role, 0, len(names))
	for _, name := range names {
		role, err := domain.ParseRole(name)
		if err != nil {
			s.logger.WarnContext(ctx, "dropping unrecognised role",
				slog.String("user_id", userID),
				slog.String("role", name),
			)
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

func passwordViolations(password string) []string {
	var out []string
	if len(password) < minPasswordLength {
		out = append(out, fmt.Sprintf("Passwords must be at least %d characters.", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		out = append(out, fmt.Sprintf("Passwords must be at most %d bytes.", maxPasswordBytes))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper {
		out = append(out, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	if !hasLower {
		out = append(out, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if !hasDigit {
		out = append(out, "Passwords must have at least one digit ('0'-'9').")
	}
	return out
}
