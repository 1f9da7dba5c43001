package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/KavyaGunapati/TypeFromProject/internal/auth"
	"github.com/KavyaGunapati/TypeFromProject/internal/credential"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository"
	"github.com/KavyaGunapati/TypeFromProject/internal/repository/memory"
	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/pkg/health"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
)

const testPassword = "Secret123"

// failingRotation makes every rotation fail with a transient store error.
type failingRotation struct {
	*memory.RefreshTokenRepository
}

func (failingRotation) Rotate(context.Context, string, string, time.Time, time.Time) (*repository.Rotation, error) {
	return nil, errors.New("serialization failure")
}

type testServer struct {
	handler http.Handler
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithTokens(t, memory.NewRefreshTokenRepository())
}

func newTestServerWithTokens(t *testing.T, tokens repository.RefreshTokenRepository) *testServer {
	t.Helper()
	return buildTestServer(t, tokens, middleware.RateLimitConfig{})
}

func buildTestServer(t *testing.T, tokens repository.RefreshTokenRepository, authLimit middleware.RateLimitConfig) *testServer {
	t.Helper()
	logger := newTestLogger()

	cfg, err := auth.NewSigningConfig("handler-test-signing-key-0123456789abcdef", "identity-service", "identity-clients", 15, 14)
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(cfg)
	require.NoError(t, err)

	creds := credential.NewStore(memory.NewUserRepository(), memory.NewRoleRepository(), nil, logger).
		WithBcryptCost(bcrypt.MinCost)
	orgRepo := memory.NewOrganizationRepository()

	svcs := Services{
		Sessions:      service.NewSessionService(creds, tokens, issuer, nil, logger),
		Organizations: service.NewOrganizationService(orgRepo, logger),
		Memberships:   service.NewMembershipService(memory.NewMembershipRepository(), orgRepo, creds, logger),
	}

	return &testServer{
		handler: NewRouter(svcs, issuer, health.NewHandler(), logger, middleware.DefaultCORSConfig(), authLimit),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, accessToken string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) signUp(t *testing.T, email string) service.AuthResponse {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"full_name": "Ada Lovelace",
		"email":     email,
		"password":  testPassword,
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decodeResult[service.AuthResponse](t, rr)
	require.NotNil(t, res.Data)
	return *res.Data
}

func decodeResult[T any](t *testing.T, rr *httptest.ResponseRecorder) service.Result[T] {
	t.Helper()
	var res service.Result[T]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	return envelope.Data
}

func jsonUnmarshal(rr *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rr.Body.Bytes(), v)
}
