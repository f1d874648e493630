package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/middleware"
)

type AuthController struct {
	authService services.AuthServiceInterface
	logger      *zap.Logger
}

func NewAuthController(authService services.AuthServiceInterface, logger *zap.Logger) *AuthController {
	return &AuthController{authService: authService, logger: logger}
}

func (ctrl *AuthController) Login(c echo.Context) error {
	var payload dto.LoginDTO
	if err := c.Bind(&payload); err != nil {
		ctrl.logger.Debug("Login: bind failed", zap.Error(err))
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid login payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	res, err := ctrl.authService.Login(c.Request().Context(), payload)
	if err != nil {
		ctrl.logger.Info("Login failed", zap.String("staff_id", payload.StaffID), zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Login successful", res)
}

func (ctrl *AuthController) Me(c echo.Context) error {
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}
	user, err := ctrl.authService.Me(c.Request().Context(), principal.UserID)
	if err != nil {
		ctrl.logger.Error("Me: failed to load user", zap.String("user_id", principal.UserID.String()), zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Profile loaded", user)
}

func (ctrl *AuthController) Refresh(c echo.Context) error {
	var payload dto.RefreshTokenDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid refresh payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	res, err := ctrl.authService.Refresh(c.Request().Context(), payload.RefreshToken)
	if err != nil {
		ctrl.logger.Debug("Refresh rejected", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Tokens refreshed", res)
}

// Logout revokes the presented access token and, when supplied, the refresh token too.
func (ctrl *AuthController) Logout(c echo.Context) error {
	claims, _ := middleware.ClaimsFromContext(c.Request().Context())

	var payload dto.RefreshTokenDTO
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&payload); err != nil {
			return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid logout payload"))
		}
	}

	if err := ctrl.authService.Logout(c.Request().Context(), claims, payload.RefreshToken); err != nil {
		ctrl.logger.Error("Logout failed", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne[any](c, http.StatusOK, "Logged out", nil)
}
