package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KavyaGunapati/TypeFromProject/internal/repository/memory"
	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
)

func TestSignUp_Created(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":    "ada@example.com",
		"password": testPassword,
	}, "")

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	res := decodeResult[service.AuthResponse](t, rr)
	assert.True(t, res.Success)
	assert.Equal(t, service.MsgRegistered, res.Message)
	require.NotNil(t, res.Data)
	assert.NotEmpty(t, res.Data.AccessToken)
	assert.NotEmpty(t, res.Data.RefreshToken)
	assert.Equal(t, []string{"User"}, res.Data.Roles)
}

func TestSignUp_Failures(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "taken@example.com")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "duplicate email",
			body:       map[string]string{"email": "taken@example.com", "password": testPassword},
			wantStatus: http.StatusConflict,
			wantCode:   service.CodeDuplicateIdentity,
		},
		{
			name:       "weak password",
			body:       map[string]string{"email": "new@example.com", "password": "weak"},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeCredentialPolicyViolation,
		},
		{
			name:       "malformed email",
			body:       map[string]string{"email": "not-an-email", "password": testPassword},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeCredentialPolicyViolation,
		},
		{
			name:       "missing password",
			body:       map[string]string{"email": "new@example.com"},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeCredentialPolicyViolation,
		},
		{
			name:       "password longer than bcrypt accepts",
			body:       map[string]string{"email": "new@example.com", "password": "Aa1" + strings.Repeat("x", 80)},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeCredentialPolicyViolation,
		},
		{
			name:       "malformed json",
			body:       `{"email":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "unknown field",
			body:       `{"email":"x@example.com","password":"Secret123","admin":true}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, http.MethodPost, "/api/v1/auth/signup", tt.body, "")

			assert.Equal(t, tt.wantStatus, rr.Code)
			res := decodeResult[service.AuthResponse](t, rr)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.Code)
			assert.Nil(t, res.Data)
		})
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.signUp(t, "ada@example.com")

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ada@example.com", "password": testPassword}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.MsgLoggedIn, decodeResult[service.AuthResponse](t, rr).Message)

	rr = srv.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ada@example.com", "password": "Wrong1234"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	res := decodeResult[service.AuthResponse](t, rr)
	assert.Equal(t, service.CodeInvalidCredentials, res.Code)
	assert.Equal(t, service.MsgInvalidCredentials, res.Message)
}

func TestLogin_RateLimited(t *testing.T) {
	srv := buildTestServer(t, memory.NewRefreshTokenRepository(), middleware.RateLimitConfig{RPS: 0.001, Burst: 2})
	creds := map[string]string{"email": "nobody@example.com", "password": "Wrong1234"}

	for i := 0; i < 2; i++ {
		rr := srv.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
		require.Equal(t, http.StatusUnauthorized, rr.Code, "attempt %d", i+1)
	}

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/login", creds, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// Logout shares the client but not the bucket.
	rr = srv.do(t, http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": "unknown"}, "")
	assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)
	session := srv.signUp(t, "ada@example.com")

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": session.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rotated := decodeResult[service.AuthResponse](t, rr)
	require.NotNil(t, rotated.Data)
	assert.NotEqual(t, session.RefreshToken, rotated.Data.RefreshToken)

	rr = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": session.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, service.CodeInvalidOrExpiredToken, decodeResult[service.AuthResponse](t, rr).Code)

	rr = srv.do(t, http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": rotated.Data.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.MsgLogoutSuccessful, decodeResult[struct{}](t, rr).Message)

	rr = srv.do(t, http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": rotated.Data.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.MsgAlreadyLoggedOut, decodeResult[struct{}](t, rr).Message)

	rr = srv.do(t, http.MethodPost, "/api/v1/auth/logout", map[string]string{}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, service.MsgAlreadyLoggedOut, decodeResult[struct{}](t, rr).Message)
}

func TestRefresh_TransientFailureIsRetryable(t *testing.T) {
	srv := newTestServerWithTokens(t, failingRotation{memory.NewRefreshTokenRepository()})
	session := srv.signUp(t, "ada@example.com")

	rr := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": session.RefreshToken}, "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	res := decodeResult[service.AuthResponse](t, rr)
	assert.Equal(t, service.CodeTokenExchangeFailed, res.Code)
	assert.True(t, res.Retryable)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	session := srv.signUp(t, "ada@example.com")

	rr := srv.do(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/auth/me", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/v1/auth/me", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	claims := decodeData[middleware.Claims](t, rr)
	assert.Equal(t, session.UserID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada Lovelace", claims.Name)
	assert.Equal(t, []string{"User"}, claims.Roles)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", nil, "").Code)

	srv.signUp(t, "ada@example.com")
	rr := srv.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "auth_operations_total")
}
