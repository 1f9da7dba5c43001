package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	"github.com/KavyaGunapati/TypeFromProject/internal/credential"
	"github.com/KavyaGunapati/TypeFromProject/internal/domain"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	apperrors "github.com/KavyaGunapati/TypeFromProject/pkg/errors"
)

// CredentialStore owns identities, passwords and identity roles.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	VerifyPassword(ctx context.Context, user *domain.User, password string) bool
	CreateIdentity(ctx context.Context, in credential.NewIdentity) (*domain.User, error)
	GetRoles(ctx context.Context, userID string) ([]domain.Role, error)
	EnsureRoleExists(ctx context.Context, role domain.Role) error
	AssignRole(ctx context.Context, userID string, role domain.Role) error
}

// TokenIssuer mints access tokens and opaque refresh tokens.
type TokenIssuer interface {
	Issue(subject auth.TokenSubject) (string, time.Time, error)
	IssueRefreshOpaque() (string, time.Time, error)
}

// EventPublisher receives best-effort notifications of session changes.
type EventPublisher interface {
	UserRegistered(ctx context.Context, user *domain.User, roles []domain.Role)
	SessionStarted(ctx context.Context, userID string, refreshTokenID int64, expiresAt time.Time)
	SessionRevoked(ctx context.Context, userID string, refreshTokenID int64)
}

// RegisterInput holds the parameters for signing up.
type RegisterInput struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResponse is the payload of a successful sign-up, login or refresh.
type AuthResponse struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	UserID                string    `json:"user_id"`
	FullName              string    `json:"full_name"`
	Email                 string    `json:"email"`
	Roles                 []string  `json:"roles"`
}

// SessionService runs the session lifecycle: sign-up, login, refresh token
// rotation and logout. Every operation returns a Result; internal errors are
// logged here and never reach the caller.
type SessionService struct {
	creds  CredentialStore
	tokens repository.RefreshTokenRepository
	issuer TokenIssuer
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService creates a new session service. events may be nil.
func NewSessionService(
	creds CredentialStore,
	tokens repository.RefreshTokenRepository,
	issuer TokenIssuer,
	events EventPublisher,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		creds:  creds,
		tokens: tokens,
		issuer: issuer,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for refresh token checks.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// SignUp registers a new identity with the default role and starts its first
// session.
func (s *SessionService) SignUp(ctx context.Context, in RegisterInput) Result[AuthResponse] {
	ctx, span := startOperation(ctx, OpSignUp)
	return recordOperation(span, OpSignUp, s.signUp(ctx, in))
}

func (s *SessionService) signUp(ctx context.Context, in RegisterInput) Result[AuthResponse] {
	email := credential.NormalizeEmail(in.Email)

	_, err := s.creds.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "sign up rejected: email already registered", slog.String("email", email))
		return fail[AuthResponse](CodeDuplicateIdentity, MsgEmailRegistered)
	case !errors.Is(err, apperrors.ErrNotFound):
		return s.internal(ctx, OpSignUp, MsgSignUpUnexpected, err)
	}

	user, err := s.creds.CreateIdentity(ctx, credential.NewIdentity{
		FullName:    in.FullName,
		Email:       email,
		Password:    in.Password,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		var policy *credential.PolicyError
		switch {
		case errors.As(err, &policy):
			return fail[AuthResponse](CodeCredentialPolicyViolation, policy.Error())
		case errors.Is(err, apperrors.ErrAlreadyExists):
			// Lost a race with a concurrent sign-up for the same email.
			return fail[AuthResponse](CodeDuplicateIdentity, MsgEmailRegistered)
		default:
			return s.internal(ctx, OpSignUp, MsgSignUpUnexpected, err)
		}
	}

	if err := s.grantDefaultRole(ctx, user.ID); err != nil {
		return s.internal(ctx, OpSignUp, MsgSignUpUnexpected, err)
	}

	resp, err := s.startSession(ctx, user)
	if err != nil {
		return s.internal(ctx, OpSignUp, MsgSignUpUnexpected, err)
	}

	if s.events != nil {
		s.events.UserRegistered(ctx, user, toRoles(resp.Roles))
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return succeed(MsgRegistered, resp)
}

// Login authenticates an identity by email and password and starts a new,
// independent session. Existing sessions of the identity are left alone.
func (s *SessionService) Login(ctx context.Context, in LoginInput) Result[AuthResponse] {
	ctx, span := startOperation(ctx, OpLogin)
	return recordOperation(span, OpLogin, s.login(ctx, in))
}

func (s *SessionService) login(ctx context.Context, in LoginInput) Result[AuthResponse] {
	user, err := s.creds.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fail[AuthResponse](CodeInvalidCredentials, MsgInvalidCredentials)
		}
		return s.internal(ctx, OpLogin, MsgLoginUnexpected, err)
	}

	// Unknown email, inactive account and wrong password are indistinguishable.
	if !user.IsActive || !s.creds.VerifyPassword(ctx, user, in.Password) {
		s.logger.InfoContext(ctx, "login rejected", slog.String("user_id", user.ID))
		return fail[AuthResponse](CodeInvalidCredentials, MsgInvalidCredentials)
	}

	resp, err := s.startSession(ctx, user)
	if err != nil {
		return s.internal(ctx, OpLogin, MsgLoginUnexpected, err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return succeed(MsgLoggedIn, resp)
}

// Refresh exchanges an active refresh token for a new access token and a
// successor refresh token. The presented token is revoked atomically with
// the successor being stored, so of two concurrent calls at most one wins.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) Result[AuthResponse] {
	ctx, span := startOperation(ctx, OpRefresh)
	return recordOperation(span, OpRefresh, s.refresh(ctx, refreshToken))
}

func (s *SessionService) refresh(ctx context.Context, refreshToken string) Result[AuthResponse] {
	if strings.TrimSpace(refreshToken) == "" {
		return fail[AuthResponse](CodeInvalidOrExpiredToken, MsgInvalidRefreshToken)
	}

	now := s.now()
	presentedHash := auth.HashToken(refreshToken)

	current, err := s.tokens.FindActive(ctx, presentedHash, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fail[AuthResponse](CodeInvalidOrExpiredToken, MsgInvalidRefreshToken)
		}
		return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
	}

	user, err := s.creds.FindByID(ctx, current.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fail[AuthResponse](CodeInvalidOrExpiredToken, MsgInvalidRefreshToken)
		}
		return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
	}
	if !user.IsActive {
		return fail[AuthResponse](CodeInvalidOrExpiredToken, MsgInvalidRefreshToken)
	}

	roles, err := s.creds.GetRoles(ctx, user.ID)
	if err != nil {
		return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
	}

	access, accessExp, err := s.issuer.Issue(subjectFor(user, roles))
	if err != nil {
		return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
	}
	next, nextExp, err := s.issuer.IssueRefreshOpaque()
	if err != nil {
		return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
	}

	if _, err := s.tokens.Rotate(ctx, presentedHash, auth.HashToken(next), nextExp, now); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			// Revoked or expired between lookup and rotation.
			return fail[AuthResponse](CodeInvalidOrExpiredToken, MsgInvalidRefreshToken)
		case errors.Is(err, repository.ErrTokenCollision):
			return s.internal(ctx, OpRefresh, MsgRefreshUnexpected, err)
		default:
			s.logger.ErrorContext(ctx, "refresh token rotation failed",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			return fail[AuthResponse](CodeTokenExchangeFailed, MsgTokenExchangeFailed)
		}
	}

	s.logger.InfoContext(ctx, "refresh token rotated", slog.String("user_id", user.ID))

	return succeed(MsgTokenRefreshed, newAuthResponse(user, roles, access, accessExp, next, nextExp))
}

// Logout revokes a refresh token. Blank, unknown, revoked and expired tokens
// all succeed with MsgAlreadyLoggedOut.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) Result[struct{}] {
	ctx, span := startOperation(ctx, OpLogout)
	return recordOperation(span, OpLogout, s.logout(ctx, refreshToken))
}

func (s *SessionService) logout(ctx context.Context, refreshToken string) Result[struct{}] {
	if strings.TrimSpace(refreshToken) == "" {
		return succeed[struct{}](MsgAlreadyLoggedOut, nil)
	}

	current, err := s.tokens.FindActive(ctx, auth.HashToken(refreshToken), s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return succeed[struct{}](MsgAlreadyLoggedOut, nil)
		}
		return s.internalEmpty(ctx, err)
	}

	if err := s.tokens.Revoke(ctx, current.ID); err != nil {
		return s.internalEmpty(ctx, err)
	}

	if s.events != nil {
		s.events.SessionRevoked(ctx, current.UserID, current.ID)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", current.UserID))

	return succeed[struct{}](MsgLogoutSuccessful, nil)
}

// startSession issues a token pair for user and stores the refresh record.
func (s *SessionService) startSession(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	roles, err := s.creds.GetRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	// An identity without roles is a sign-up that failed after the account
	// was stored; finish it here.
	if len(roles) == 0 {
		if err := s.grantDefaultRole(ctx, user.ID); err != nil {
			return nil, err
		}
		s.logger.WarnContext(ctx, "granted missing default role", slog.String("user_id", user.ID))
		roles = []domain.Role{domain.DefaultRole}
	}

	access, accessExp, err := s.issuer.Issue(subjectFor(user, roles))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefreshOpaque()
	if err != nil {
		return nil, err
	}

	id, err := s.tokens.Save(ctx, user.ID, auth.HashToken(refresh), refreshExp)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.SessionStarted(ctx, user.ID, id, refreshExp)
	}

	return newAuthResponse(user, roles, access, accessExp, refresh, refreshExp), nil
}

func (s *SessionService) grantDefaultRole(ctx context.Context, userID string) error {
	if err := s.creds.EnsureRoleExists(ctx, domain.DefaultRole); err != nil {
		return err
	}
	return s.creds.AssignRole(ctx, userID, domain.DefaultRole)
}

func (s *SessionService) internal(ctx context.Context, op, message string, err error) Result[AuthResponse] {
	s.logError(ctx, op, err)
	return fail[AuthResponse](CodeInternalError, message)
}

func (s *SessionService) internalEmpty(ctx context.Context, err error) Result[struct{}] {
	s.logError(ctx, OpLogout, err)
	return fail[struct{}](CodeInternalError, MsgLogoutUnexpected)
}

func (s *SessionService) logError(ctx context.Context, op string, err error) {
	attrs := []any{
		slog.String("operation", op),
		slog.String("error", err.Error()),
	}
	if errors.Is(err, repository.ErrTokenCollision) {
		attrs = append(attrs, slog.Bool("token_collision", true))
	}
	s.logger.ErrorContext(ctx, "session operation failed", attrs...)
}

func subjectFor(user *domain.User, roles []domain.Role) auth.TokenSubject {
	return auth.TokenSubject{
		UserID:   user.ID,
		UserName: user.DisplayName(),
		Email:    user.Email,
		Roles:    roles,
	}
}

func newAuthResponse(user *domain.User, roles []domain.Role, access string, accessExp time.Time, refresh string, refreshExp time.Time) *AuthResponse {
	return &AuthResponse{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
		UserID:                user.ID,
		FullName:              user.FullName,
		Email:                 user.Email,
		Roles:                 domain.RoleNames(roles),
	}
}

func toRoles(names []string) []domain.Role {
	roles := make([]domain.Role, len(names))
	for i, n := range names {
		roles[i] = domain.Role(n)
	}
	return roles
}
