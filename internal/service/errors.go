package service

import "net/http"

// Failure codes carried by Result.Code.
const (
	CodeDuplicateIdentity         = "DUPLICATE_IDENTITY"
	CodeCredentialPolicyViolation = "CREDENTIAL_POLICY_VIOLATION"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeInvalidOrExpiredToken     = "INVALID_OR_EXPIRED_TOKEN"
	CodeTokenExchangeFailed       = "TOKEN_EXCHANGE_FAILED"
	CodeInternalError             = "INTERNAL_ERROR"
)

// User-facing messages.
const (
	MsgRegistered          = "Registered Successfully"
	MsgLoggedIn            = "Logged in Successfully"
	MsgTokenRefreshed      = "Token refreshed."
	MsgLogoutSuccessful    = "Logout successful."
	MsgAlreadyLoggedOut    = "Already logged out."
	MsgEmailRegistered     = "Email already registered."
	MsgInvalidCredentials  = "Invalid email or password."
	MsgInvalidRefreshToken = "Invalid or expired refresh token."
	MsgTokenExchangeFailed = "Token refresh could not be completed. Please retry."
	MsgSignUpUnexpected    = "Unexpected error during sign up."
	MsgLoginUnexpected     = "Unexpected error during login."
	MsgRefreshUnexpected   = "Unexpected error during token refresh."
	MsgLogoutUnexpected    = "Unexpected error during logout."
)

// HTTPStatus maps a Result code to its HTTP status. Successful results and
// unknown codes map to 200 and 500 respectively.
func HTTPStatus(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case CodeDuplicateIdentity:
		return http.StatusConflict
	case CodeCredentialPolicyViolation:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeInvalidOrExpiredToken:
		return http.StatusUnauthorized
	case CodeTokenExchangeFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Result is the envelope every session operation returns. Failures carry a
// Code and never a Go error.
type Result[T any] struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Data      *T     `json:"data,omitempty"`
}

func succeed[T any](message string, data *T) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

func fail[T any](code, message string) Result[T] {
	return Result[T]{
		Message:   message,
		Code:      code,
		Retryable: code == CodeTokenExchangeFailed,
	}
}
