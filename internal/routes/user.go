package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

func runUserRouter(secureGroup *echo.Group, userCtrl *controllers.UserController, authMW *middleware.AuthMiddleware) {
	users := secureGroup.Group("/admin/users", authMW.Require(authz.UsersManage))
	{
		users.GET("", userCtrl.List)
		users.POST("", userCtrl.Create)
		users.GET("/:id", userCtrl.Get)
		users.PATCH("/:id", userCtrl.Update)
		users.DELETE("/:id", userCtrl.Delete)
		users.POST("/:id/activate", userCtrl.Activate)
	}
}
