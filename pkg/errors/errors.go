package errors

import (
	"fmt"
	"net/http"
)

var (
	// JWT
	ErrInvalidSigningMethod = fmt.Errorf("invalid token signing method")
	ErrInvalidToken         = fmt.Errorf("invalid token")
	ErrTokenExpired         = fmt.Errorf("token expired")
	ErrTokenNotYetValid     = fmt.Errorf("token not yet valid")
	ErrTokenIsNotRefresh    = fmt.Errorf("token is not a refresh token")
	ErrTokenIsNotAccess     = fmt.Errorf("token is not an access token")
	ErrTokenRevoked         = fmt.Errorf("token has been revoked")

	// Auth
	ErrEmptyAuthHeader    = fmt.Errorf("authorization header is missing")
	ErrInvalidAuthHeader  = fmt.Errorf("invalid authorization header format")
	ErrInvalidCredentials = fmt.Errorf("Invalid credentials")
	ErrPasswordNotSet     = fmt.Errorf("Please use the Telegram bot to register first")
	ErrInactiveUser       = fmt.Errorf("User account is inactive")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrForbidden          = fmt.Errorf("Not enough permissions")
	ErrAuthUnavailable    = fmt.Errorf("Authentication is temporarily unavailable")

	// Context
	ErrPrincipalNotFoundInContext = fmt.Errorf("principal not found in request context")

	// Common
	ErrNotFound       = fmt.Errorf("record not found")
	ErrBadRequest     = fmt.Errorf("bad request")
	ErrConflict       = fmt.Errorf("record already exists")
	ErrStaffIDTaken   = fmt.Errorf("%w: staff id", ErrConflict)
	ErrTelegramTaken  = fmt.Errorf("%w: telegram account", ErrConflict)
	ErrRetryExhausted = fmt.Errorf("operation failed after retries, please try again")
	ErrStorage        = fmt.Errorf("file storage unavailable")
)

type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError carries a status code and a user-facing message. Err keeps the cause for logs.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Details interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, details interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Details: details}
}

func NewBadRequestError(message string) *HttpError {
	return NewHttpError(http.StatusBadRequest, message, ErrBadRequest, nil)
}

func NewNotFoundError(message string) *HttpError {
	return NewHttpError(http.StatusNotFound, message, ErrNotFound, nil)
}

func NewConflictError(message string) *HttpError {
	return NewHttpError(http.StatusBadRequest, message, ErrConflict, nil)
}
