package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

func runFindingRouter(secureGroup *echo.Group, findingCtrl *controllers.FindingController, authMW *middleware.AuthMiddleware) {
	view := authMW.Require(authz.FindingsView)
	triage := authMW.Require(authz.FindingsTriage)

	secureGroup.GET("/findings", findingCtrl.List, view)
	secureGroup.GET("/findings/export", findingCtrl.Export, view)
	secureGroup.GET("/findings/:id", findingCtrl.Get, view)

	secureGroup.PATCH("/findings/:id/status", findingCtrl.UpdateStatus, triage)
	secureGroup.PATCH("/findings/:id/assign", findingCtrl.Assign, triage)
	secureGroup.POST("/findings/summary", findingCtrl.Summary, triage)
	secureGroup.POST("/findings/summary/export", findingCtrl.SummaryExport, triage)
}
