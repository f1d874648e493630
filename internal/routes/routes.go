package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/controllers"
	"safety-inspection/pkg/middleware"
)

// Controllers is everything InitRouter mounts. Telegram and WebSocket may be nil.
type Controllers struct {
	Auth         *controllers.AuthController
	User         *controllers.UserController
	Area         *controllers.AreaController
	Finding      *controllers.FindingController
	Notification *controllers.NotificationController
	Setup        *controllers.SetupController
	WebSocket    *controllers.WebSocketController
	Telegram     *controllers.TelegramController
}

func InitRouter(e *echo.Echo, ctrls Controllers, authMW *middleware.AuthMiddleware, apiPrefix string, logger *zap.Logger) {
	logger.Info("InitRouter: registering routes", zap.String("prefix", apiPrefix+"/v1"))

	e.GET("/", ctrls.Setup.Root)
	e.GET("/health", ctrls.Setup.Health)

	api := e.Group(apiPrefix + "/v1")
	secureGroup := api.Group("", authMW.Auth)

	runAuthRouter(api, ctrls.Auth, authMW)
	runUserRouter(secureGroup, ctrls.User, authMW)
	runAreaRouter(secureGroup, ctrls.Area, authMW)
	runFindingRouter(secureGroup, ctrls.Finding, authMW)
	runNotificationRouter(secureGroup, ctrls.Notification)
	runSetupRouter(api, ctrls.Setup, authMW)
	runRealtimeRouter(e, ctrls.WebSocket)
	runTelegramRouter(e, ctrls.Telegram)

	logger.Info("InitRouter: routes registered", zap.Int("count", len(e.Routes())))
}
