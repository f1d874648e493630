package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

func runAreaRouter(secureGroup *echo.Group, areaCtrl *controllers.AreaController, authMW *middleware.AuthMiddleware) {
	view := authMW.Require(authz.AreasView)
	manage := authMW.Require(authz.AreasManage)

	secureGroup.GET("/areas", areaCtrl.List, view)
	secureGroup.GET("/areas/tree", areaCtrl.Tree, view)
	secureGroup.GET("/areas/:id", areaCtrl.Get, view)
	secureGroup.GET("/areas/:id/descendants", areaCtrl.Descendants, view)

	secureGroup.POST("/areas", areaCtrl.Create, manage)
	secureGroup.PATCH("/areas/:id", areaCtrl.Update, manage)
	secureGroup.DELETE("/areas/:id", areaCtrl.Delete, manage)
	secureGroup.POST("/areas/:id/admins", areaCtrl.AssignAdmin, manage)
}
