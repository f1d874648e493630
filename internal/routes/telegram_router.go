package routes

import (
	"github.com/labstack/echo/v4"

	"safety-inspection/internal/controllers"
)

// runTelegramRouter is a no-op in polling mode.
func runTelegramRouter(e *echo.Echo, tgCtrl *controllers.TelegramController) {
	if tgCtrl == nil {
		return
	}
	e.POST("/webhooks/telegram", tgCtrl.HandleTelegramWebhook)
}

// runRealtimeRouter authenticates inside the handler because the token arrives as a query param.
func runRealtimeRouter(e *echo.Echo, wsCtrl *controllers.WebSocketController) {
	if wsCtrl == nil {
		return
	}
	e.GET("/ws", wsCtrl.ServeWs)
}
