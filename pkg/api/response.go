package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "safety-inspection/pkg/errors"
)

type Response[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body,omitempty"`
}

type ListBody[T any] struct {
	List       []T             `json:"list"`
	Pagination *PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	TotalCount uint64 `json:"total_count"`
	TotalPages int    `json:"total_pages"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

func TotalPages(total uint64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + uint64(limit) - 1) / uint64(limit))
}

func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

func SuccessList[T any](c echo.Context, message string, list []T, total uint64, page, limit int) error {
	if list == nil {
		list = make([]T, 0)
	}

	body := ListBody[T]{
		List: list,
		Pagination: &PaginationMeta{
			TotalCount: total,
			TotalPages: TotalPages(total, limit),
			Page:       page,
			Limit:      limit,
		},
	}

	return c.JSON(http.StatusOK, Response[ListBody[T]]{
		Status:  true,
		Message: message,
		Body:    body,
	})
}

// StatusFor resolves the HTTP status and user-facing message for an error.
func StatusFor(err error) (int, string) {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Message
	}

	var inputErr *apperrors.InvalidInputError
	if errors.As(err, &inputErr) {
		return http.StatusBadRequest, inputErr.Message
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest, validationErrs.Error()
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrPasswordNotSet),
		errors.Is(err, apperrors.ErrInactiveUser),
		errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrEmptyAuthHeader),
		errors.Is(err, apperrors.ErrInvalidAuthHeader),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrInvalidSigningMethod),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrTokenNotYetValid),
		errors.Is(err, apperrors.ErrTokenIsNotAccess),
		errors.Is(err, apperrors.ErrTokenIsNotRefresh),
		errors.Is(err, apperrors.ErrTokenRevoked):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, apperrors.ErrRetryExhausted):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, apperrors.ErrAuthUnavailable):
		return http.StatusServiceUnavailable, apperrors.ErrAuthUnavailable.Error()
	case errors.Is(err, apperrors.ErrStorage):
		return http.StatusBadGateway, apperrors.ErrStorage.Error()
	}

	return http.StatusInternalServerError, "Internal server error"
}

func ErrorResponse(c echo.Context, err error) error {
	code, msg := StatusFor(err)
	return c.JSON(code, Response[any]{
		Status:  false,
		Message: msg,
	})
}
