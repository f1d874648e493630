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
)

type NotificationController struct {
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewNotificationController(notificationService services.NotificationServiceInterface, logger *zap.Logger) *NotificationController {
	return &NotificationController{notificationService: notificationService, logger: logger}
}

func (ctrl *NotificationController) GetSettings(c echo.Context) error {
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}
	settings, err := ctrl.notificationService.GetSettings(c.Request().Context(), principal.UserID)
	if err != nil {
		ctrl.logger.Error("Failed to load notification settings", zap.String("user_id", principal.UserID.String()), zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Notification settings loaded", settings)
}

func (ctrl *NotificationController) UpdateSettings(c echo.Context) error {
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}
	var payload dto.UpdateNotificationSettingsDTO
	if err := c.Bind(&payload); err != nil {
		return api.ErrorResponse(c, apperrors.NewBadRequestError("Invalid settings payload"))
	}
	if err := c.Validate(&payload); err != nil {
		return api.ErrorResponse(c, err)
	}

	settings, err := ctrl.notificationService.UpdateSettings(c.Request().Context(), principal.UserID, payload)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Notification settings updated", settings)
}

func (ctrl *NotificationController) SendTest(c echo.Context) error {
	principal, err := authz.PrincipalFromContext(c.Request().Context())
	if err != nil {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}
	if err := ctrl.notificationService.SendTest(c.Request().Context(), principal); err != nil {
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne[any](c, http.StatusOK, "Test notification sent", nil)
}
