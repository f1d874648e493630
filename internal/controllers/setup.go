package controllers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/services"
	"safety-inspection/pkg/api"
	"safety-inspection/pkg/config"
)

// Migrator applies pending schema migrations.
type Migrator func(ctx context.Context) error

type AppInfoDTO struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	API     string `json:"api"`
}

type SetupController struct {
	setupService services.SetupServiceInterface
	migrate      Migrator
	app          config.AppConfig
	logger       *zap.Logger
}

func NewSetupController(setupService services.SetupServiceInterface, migrate Migrator, app config.AppConfig, logger *zap.Logger) *SetupController {
	return &SetupController{setupService: setupService, migrate: migrate, app: app, logger: logger}
}

func (ctrl *SetupController) Root(c echo.Context) error {
	return api.SuccessOne(c, http.StatusOK, "ok", AppInfoDTO{
		Name:    ctrl.app.Name,
		Version: ctrl.app.Version,
		API:     ctrl.app.APIPrefix + "/v1",
	})
}

// Health answers 503 when the database is unreachable.
func (ctrl *SetupController) Health(c echo.Context) error {
	health := ctrl.setupService.Health(c.Request().Context())
	code := http.StatusOK
	if health.Database != services.HealthOK {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, health)
}

func (ctrl *SetupController) SeedInitialData(c echo.Context) error {
	res, err := ctrl.setupService.SeedInitialData(c.Request().Context())
	if err != nil {
		ctrl.logger.Error("Initial data setup failed", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne(c, http.StatusOK, "Initial data processed", res)
}

func (ctrl *SetupController) RunMigrations(c echo.Context) error {
	if err := ctrl.migrate(c.Request().Context()); err != nil {
		ctrl.logger.Error("Migrations failed", zap.Error(err))
		return api.ErrorResponse(c, err)
	}
	return api.SuccessOne[any](c, http.StatusOK, "Migrations applied", nil)
}
