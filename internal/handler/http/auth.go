package http

import (
	"errors"
	"net/http"

	"github.com/KavyaGunapati/TypeFromProject/internal/service"
	"github.com/KavyaGunapati/TypeFromProject/pkg/httputil"
	"github.com/KavyaGunapati/TypeFromProject/pkg/middleware"
	"github.com/KavyaGunapati/TypeFromProject/pkg/validator"
)

// CodeInvalidRequest is returned by auth endpoints for bodies that cannot be
// decoded or fail validation.
const CodeInvalidRequest = "INVALID_REQUEST"

// AuthHandler handles HTTP requests for the session endpoints.
type AuthHandler struct {
	sessions *service.SessionService
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// --- Request DTOs ---

// SignUpRequest is the JSON request body for registration. Password strength
// is checked by the credential store so every violation is reported at once.
type SignUpRequest struct {
	FullName    string `json:"full_name" validate:"max=200"`
	Email       string `json:"email" validate:"required,email,max=256"`
	Password    string `json:"password" validate:"required,max=128"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the JSON request body for refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// --- Handlers ---

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		// Field rejections on a new identity are policy violations; only
		// undecodable bodies are invalid requests.
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			writeResult(w, http.StatusCreated, service.Result[service.AuthResponse]{
				Message: valErr.Error(),
				Code:    service.CodeCredentialPolicyViolation,
			})
			return
		}
		writeInvalidRequest(w, err)
		return
	}

	res := h.sessions.SignUp(r.Context(), service.RegisterInput{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	writeResult(w, http.StatusCreated, res)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err)
		return
	}

	res := h.sessions.Login(r.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	writeResult(w, http.StatusOK, res)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err)
		return
	}

	writeResult(w, http.StatusOK, h.sessions.Refresh(r.Context(), req.RefreshToken))
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeInvalidRequest(w, err)
		return
	}

	writeResult(w, http.StatusOK, h.sessions.Logout(r.Context(), req.RefreshToken))
}

// Me handles GET /api/v1/auth/me and echoes the verified token claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: claims})
}

// writeResult writes a session Result. Successful results use okStatus;
// failures use the status mapped from their code.
func writeResult[T any](w http.ResponseWriter, okStatus int, res service.Result[T]) {
	status := okStatus
	if !res.Success {
		status = service.HTTPStatus(res.Code)
	}
	if res.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	httputil.WriteJSON(w, status, res)
}

func writeInvalidRequest(w http.ResponseWriter, err error) {
	message := "invalid request body"
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		message = valErr.Error()
	}
	httputil.WriteJSON(w, http.StatusBadRequest, service.Result[struct{}]{
		Message: message,
		Code:    CodeInvalidRequest,
	})
}
