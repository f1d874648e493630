package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/controllers"
)

func runNotificationRouter(secureGroup *echo.Group, notificationCtrl *controllers.NotificationController) {
	secureGroup.GET("/notifications/settings", notificationCtrl.GetSettings)
	secureGroup.PATCH("/notifications/settings", notificationCtrl.UpdateSettings)
	secureGroup.POST("/notifications/test", notificationCtrl.SendTest)
}
