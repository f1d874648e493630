package controllers

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/pkg/api"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/service"
	appwebsocket "safety-inspection/pkg/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenAuthenticator resolves a raw access token to a principal.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*authz.Principal, *service.JwtCustomClaim, error)
}

type WebSocketController struct {
	hub    *appwebsocket.Hub
	auth   TokenAuthenticator
	logger *zap.Logger
}

func NewWebSocketController(hub *appwebsocket.Hub, auth TokenAuthenticator, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{hub: hub, auth: auth, logger: logger}
}

// ServeWs upgrades admins to the live finding feed. Browsers cannot set headers on
// websocket requests, so the access token travels in ?token=.
func (ctrl *WebSocketController) ServeWs(c echo.Context) error {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		return api.ErrorResponse(c, apperrors.ErrUnauthorized)
	}

	principal, _, err := ctrl.auth.Authenticate(c.Request().Context(), tokenString)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	if !principal.Can(authz.FindingsTriage) {
		return api.ErrorResponse(c, apperrors.ErrForbidden)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		ctrl.logger.Error("WebSocket: upgrade failed", zap.Error(err))
		return nil
	}

	client := appwebsocket.NewClient(ctrl.hub, conn, principal.UserID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	ctrl.logger.Info("WebSocket: client connected", zap.String("staff_id", principal.StaffID))
	return nil
}
