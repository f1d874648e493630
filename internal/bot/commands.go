package bot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	"safety-inspection/internal/services"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
)

// commandName turns "/report@SafetyBot extra" into "report".
func commandName(text string) string {
	cmd := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, text string) error {
	chatID := msg.Chat.ID
	switch commandName(text) {
	case "start":
		return b.handleStart(ctx, chatID, senderID(msg))
	case "menu":
		return b.send(ctx, chatID, msgMenu, menuKeyboard(), telegram.WithHTML())
	case "register":
		return b.startRegistration(ctx, chatID, msg.From)
	case "report":
		return b.startReport(ctx, chatID, senderID(msg))
	case "myreports":
		return b.handleMyReports(ctx, chatID, senderID(msg))
	case "help":
		return b.send(ctx, chatID, msgHelp)
	case "cancel":
		return b.handleCancel(ctx, chatID)
	}
	return b.send(ctx, chatID, msgUnknownCommand)
}

func senderID(msg *telegram.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

// lookupUser returns nil without error when the Telegram account is not registered.
func (b *Bot) lookupUser(ctx context.Context, telegramID int64) (*entities.User, error) {
	user, err := b.users.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// activeUser replies on behalf of the caller when the user cannot proceed; ok is false then.
func (b *Bot) activeUser(ctx context.Context, chatID, telegramID int64) (user *entities.User, ok bool, err error) {
	user, err = b.lookupUser(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, b.send(ctx, chatID, msgNotRegistered)
	}
	if !user.IsActive {
		return nil, false, b.send(ctx, chatID, msgInactive)
	}
	return user, true, nil
}

func (b *Bot) handleStart(ctx context.Context, chatID, telegramID int64) error {
	user, err := b.lookupUser(ctx, telegramID)
	if err != nil {
		return err
	}
	if user == nil {
		return b.send(ctx, chatID, msgWelcomeNew)
	}
	if !user.IsActive {
		return b.send(ctx, chatID, msgInactive)
	}
	return b.send(ctx, chatID, welcomeBack(user))
}

func (b *Bot) handleMyReports(ctx context.Context, chatID, telegramID int64) error {
	user, ok, err := b.activeUser(ctx, chatID, telegramID)
	if !ok {
		return err
	}
	findings, err := b.findings.RecentByReporter(ctx, user.ID, services.RecentReportsLimit)
	if err != nil {
		return err
	}
	return b.send(ctx, chatID, myReports(findings), telegram.WithHTML())
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64) error {
	session, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		return err
	}
	text := msgCancelled
	if session != nil {
		switch session.Flow {
		case FlowRegister:
			text = msgRegisterCancelled
		case FlowReport:
			text = msgReportCancelled
		}
	}
	return b.send(ctx, chatID, text, telegram.WithRemoveKeyboard())
}

func (b *Bot) handleMenu(ctx context.Context, query *telegram.CallbackQuery, action string) error {
	chatID := query.Message.Chat.ID
	telegramID := query.From.ID

	switch action {
	case "report":
		if err := b.edit(ctx, query, "📝 Starting a new safety finding report..."); err != nil {
			return err
		}
		return b.startReport(ctx, chatID, telegramID)
	case "myreports":
		return b.handleMyReports(ctx, chatID, telegramID)
	case "profile":
		user, err := b.lookupUser(ctx, telegramID)
		if err != nil {
			return err
		}
		if user == nil {
			return b.edit(ctx, query, "❌ You're not registered yet.\n\nUse /register to get started.")
		}
		return b.edit(ctx, query, profile(user), backKeyboard(), telegram.WithHTML())
	case "help":
		return b.send(ctx, chatID, msgHelp)
	case "back":
		return b.edit(ctx, query, msgMenu, menuKeyboard(), telegram.WithHTML())
	}
	b.logger.Debug("Unknown menu action", zap.String("action", action))
	return nil
}
