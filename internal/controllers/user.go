package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/repositories"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/utils"
)

type UserController struct {
	userService services.UserServiceInterface
	logger      *zap.Logger
}

func NewUserController(userService services.UserServiceInterface, logger *zap.Logger) *UserController {
	return &UserController{userService: userService, logger: logger}
}

func (ctrl *UserController) List(c echo.Context) error {
	values := c.QueryParams()
	page, err := utils.ParsePagination(values, services.UserPageSizeDefault, services.UserPageSizeMax)
	if err != nil {
		return api.ErrorResponse(c, err)
	}

	filter := repositories.UserFilter{
		Search:     values.Get("search"),
		Department: values.Get("department"),
		Pagination: page,
	}
	if raw := values.Get("role"); raw != "" {
		role, err := entities.ParseRole(raw)
		if err != nil {
			return api.ErrorResponse(c, apperrors.NewInvalidInputError("invalid role"))
		}
		filter.Role = &role
	}
	if raw := values.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return api.ErrorResponse(c, apperrors.NewInvalidInputError("is_active must be true or false"))
		}
		filter.IsActive = &active
	}

	users, total, err := ctrl.userService.List(c.Request().Context(), filter)
	if err != nil {
		ctrl.logger.Error("Failed to list users", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessList(c, "Users loaded", users, total, page.Page, page.PageSize)
}

func (ctrl *UserController) Get(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "user id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	user, err := ctrl.userService.Get(c.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "User loaded", user)
}

func (ctrl *UserController) Create(c echo.Context) error {
	var payload dto.CreateUserDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid user payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	user, err := ctrl.userService.Create(c.Request().Context(), payload)
	if err != nil {
		ctrl.logger.Info("Failed to create user", zap.String("staff_id", payload.StaffID), zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusCreated, "User created", user)
}

func (ctrl *UserController) Update(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "user id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	var payload dto.UpdateUserDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid user payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	user, err := ctrl.userService.Update(c.Request().Context(), id, payload)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "User updated", user)
}

// Delete deactivates the account, the row stays.
func (ctrl *UserController) Delete(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "user id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}

	if err := ctrl.userService.Deactivate(c.Request().Context(), principal.UserID, id); err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne[any](c, http.StatusOK, "User deactivated", nil)
}

func (ctrl *UserController) Activate(c echo.Context) error {
	id, err := utils.ParseUUID(c.Param("id"), "user id")
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	user, err := ctrl.userService.Activate(c.Request().Context(), id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "User activated", user)
}
