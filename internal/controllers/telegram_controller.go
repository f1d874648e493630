package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"safety-inspection/pkg/telegram"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler accepts an update and returns without waiting for it to be processed.
type UpdateHandler interface {
	HandleUpdate(update telegram.Update)
}

type TelegramController struct {
	bot    UpdateHandler
	secret string
	logger *zap.Logger
}

func NewTelegramController(bot UpdateHandler, secret string, logger *zap.Logger) *TelegramController {
	return &TelegramController{bot: bot, secret: secret, logger: logger}
}

// HandleTelegramWebhook always answers 200 to well-formed requests so Telegram does not redeliver.
func (ctrl *TelegramController) HandleTelegramWebhook(c echo.Context) error {
	if ctrl.secret != "" {
		got := c.Request().Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(ctrl.secret)) != 1 {
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var update telegram.Update
	if err := c.Bind(&update); err != nil {
		ctrl.logger.Warn("Telegram webhook: malformed update", zap.Error(err))
		return c.NoContent(http.StatusBadRequest)
	}

	ctrl.bot.HandleUpdate(update)
	return c.NoContent(http.StatusOK)
}
