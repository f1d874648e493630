package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

func runAuthRouter(api *echo.Group, authCtrl *controllers.AuthController, authMW *middleware.AuthMiddleware) {
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authCtrl.Login)
		authGroup.POST("/refresh", authCtrl.Refresh)
		authGroup.GET("/me", authCtrl.Me, authMW.Auth)
		authGroup.POST("/logout", authCtrl.Logout, authMW.Auth)
	}
}
