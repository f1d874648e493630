package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

// runSetupRouter keeps /setup/health public for load balancers.
func runSetupRouter(api *echo.Group, setupCtrl *controllers.SetupController, authMW *middleware.AuthMiddleware) {
	setup := api.Group("/setup")
	setup.GET("/health", setupCtrl.Health)

	admin := setup.Group("", authMW.Auth, authMW.Require(authz.SystemSetup))
	admin.POST("/setup-initial-data", setupCtrl.SeedInitialData)
	admin.POST("/run-migrations", setupCtrl.RunMigrations)
}
