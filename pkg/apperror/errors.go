package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Ledger (WLT) ----

func ErrWalletNotFound() *AppError {
	return New("WLT_001", "Wallet not found", http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("WLT_002", "Invalid amount", http.StatusBadRequest)
}

// ErrConcurrentModification signals a row lock that could not be acquired
// within the bounded wait. Callers may retry.
func ErrConcurrentModification(err error) *AppError {
	return Wrap("WLT_003", "Resource is being modified concurrently, retry later", http.StatusServiceUnavailable, err)
}

// ---- Gateway & Top-off (GTW) ----

func ErrNoGatewayAvailable() *AppError {
	return New("GTW_001", "No active payment gateway for the requested currency", http.StatusNotFound)
}

func ErrTransactionNotFound() *AppError {
	return New("GTW_002", "Gateway transaction not found", http.StatusNotFound)
}

// ErrAlreadyProcessed is the idempotency signal for duplicate callbacks.
// It is reported to the gateway as handled, never as a retryable failure.
func ErrAlreadyProcessed() *AppError {
	return New("GTW_003", "Gateway transaction already processed", http.StatusConflict)
}

func ErrProviderFailure(err error) *AppError {
	return Wrap("GTW_004", "Payment provider call failed", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidOTP() *AppError {
	return New("AUTH_003", "Invalid one-time password", http.StatusUnauthorized)
}

func ErrOTPResendTooSoon() *AppError {
	return New("AUTH_004", "One-time password was sent recently, wait before requesting again", http.StatusTooManyRequests)
}

func ErrUserNotFound() *AppError {
	return New("AUTH_005", "User not found", http.StatusNotFound)
}

func ErrUserInactive() *AppError {
	return New("AUTH_006", "User account is inactive", http.StatusForbidden)
}

func ErrPermissionDenied() *AppError {
	return New("AUTH_007", "Not enough permissions", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("WLT_002", message, http.StatusBadRequest)
}
