package bot

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
	"safety-inspection/pkg/utils"
)

const minStaffIDLength = 2

func (b *Bot) startRegistration(ctx context.Context, chatID int64, from *telegram.User) error {
	telegramID := chatID
	if from != nil {
		telegramID = from.ID
	}
	user, err := b.lookupUser(ctx, telegramID)
	if err != nil {
		return err
	}
	if user != nil {
		return b.send(ctx, chatID, msgAlreadyRegister)
	}

	session := &Session{ChatID: chatID, Flow: FlowRegister, Step: StepAskFullName}
	if err := b.sessions.Save(ctx, session); err != nil {
		return err
	}
	return b.send(ctx, chatID, msgRegisterStart)
}

func (b *Bot) handleRegistrationInput(ctx context.Context, session *Session, msg *telegram.Message, text string) error {
	chatID := msg.Chat.ID
	draft := &session.Registration

	switch session.Step {
	case StepAskFullName:
		if text == "" {
			return b.send(ctx, chatID, msgAskName)
		}
		draft.FullName = text
		if msg.From != nil {
			draft.Username = utils.NilIfEmpty(msg.From.Username)
		}
		session.Step = StepAskStaffID
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, niceToMeet(text))

	case StepAskStaffID:
		if utf8.RuneCountInString(text) < minStaffIDLength {
			return b.send(ctx, chatID, msgStaffIDShort)
		}
		draft.StaffID = text
		session.Step = StepAskDepartment
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, msgAskDepartment, departmentKeyboard())

	case StepAskDepartment:
		department, ok := entities.CanonicalDepartment(text)
		if !ok {
			return b.send(ctx, chatID, pickDepartment(), departmentKeyboard())
		}
		draft.Department = department
		session.Step = StepAskSection
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, askSection(department), telegram.WithRemoveKeyboard())

	case StepAskSection:
		if text == "" {
			return b.send(ctx, chatID, msgAskSection)
		}
		draft.Section = text
		session.Step = StepConfirm
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, reviewRegistration(*draft))

	case StepConfirm:
		return b.confirmRegistration(ctx, session, senderID(msg), text)
	}
	return b.sessions.Delete(ctx, chatID)
}

func (b *Bot) confirmRegistration(ctx context.Context, session *Session, telegramID int64, answer string) error {
	chatID := session.ChatID
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "yes", "y":
	default:
		return b.send(ctx, chatID, msgRegisterCancelled)
	}

	d := session.Registration
	user, err := b.users.RegisterFromTelegram(ctx, dto.TelegramRegistrationDTO{
		TelegramID: telegramID,
		Username:   d.Username,
		FullName:   d.FullName,
		StaffID:    d.StaffID,
		Department: d.Department,
		Section:    d.Section,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTelegramTaken):
			return b.send(ctx, chatID, msgTelegramTaken)
		case errors.Is(err, apperrors.ErrConflict):
			return b.send(ctx, chatID, msgStaffIDTaken)
		}
		b.logger.Error("Telegram registration failed", zap.String("staff_id", d.StaffID), zap.Error(err))
		return b.send(ctx, chatID, msgInternalError)
	}
	return b.send(ctx, chatID, registrationComplete(user))
}
