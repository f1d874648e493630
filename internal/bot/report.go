package bot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/entities"
	"safety-inspection/internal/services"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
	"safety-inspection/pkg/utils"
)

const minDescriptionLength = 5

func isSkip(text string) bool {
	switch strings.ToLower(text) {
	case "skip", "-":
		return true
	}
	return false
}

func (b *Bot) startReport(ctx context.Context, chatID, telegramID int64) error {
	user, ok, err := b.activeUser(ctx, chatID, telegramID)
	if !ok {
		return err
	}
	areas, err := b.areas.ListRoots(ctx, services.BotAreaLimit)
	if err != nil {
		return err
	}
	if len(areas) == 0 {
		return b.send(ctx, chatID, msgNoAreas)
	}

	session := &Session{
		ChatID: chatID,
		Flow:   FlowReport,
		Step:   StepSelectArea,
		Report: ReportDraft{ReporterID: user.ID},
	}
	if err := b.sessions.Save(ctx, session); err != nil {
		return err
	}
	return b.send(ctx, chatID, msgReportStart, areaKeyboard(areas))
}

func (b *Bot) handleReportCallback(ctx context.Context, session *Session, query *telegram.CallbackQuery) error {
	chatID := session.ChatID
	data := query.Data

	switch {
	case session.Step == StepSelectArea && strings.HasPrefix(data, "area_"):
		areaID, err := uuid.Parse(strings.TrimPrefix(data, "area_"))
		if err != nil {
			return b.send(ctx, chatID, msgUseAreaButtons)
		}
		session.Report.AreaID = areaID
		session.Step = StepDescription
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.edit(ctx, query, msgAskDescription)

	case session.Step == StepSeverity && strings.HasPrefix(data, "sev_"):
		severity, err := entities.ParseSeverity(strings.TrimPrefix(data, "sev_"))
		if err != nil {
			return b.send(ctx, chatID, msgUseSeverityButtons)
		}
		session.Report.Severity = severity
		session.Step = StepLocation
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.edit(ctx, query, msgAskLocation)
	}
	return b.send(ctx, chatID, msgButtonExpired)
}

func (b *Bot) handleReportInput(ctx context.Context, session *Session, msg *telegram.Message, text string) error {
	chatID := msg.Chat.ID
	draft := &session.Report

	switch session.Step {
	case StepSelectArea:
		return b.send(ctx, chatID, msgUseAreaButtons)

	case StepDescription:
		if text == "" {
			return b.send(ctx, chatID, msgDescriptionMissing)
		}
		if utf8.RuneCountInString(text) < minDescriptionLength {
			return b.send(ctx, chatID, msgDescriptionShort)
		}
		draft.Description = text
		session.Step = StepPhoto
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, msgAskPhoto)

	case StepPhoto:
		if photo := msg.LargestPhoto(); photo != nil {
			draft.PhotoFileID = photo.FileID
		} else if !isSkip(text) {
			return b.send(ctx, chatID, msgPhotoOrSkip)
		}
		session.Step = StepSeverity
		if err := b.sessions.Save(ctx, session); err != nil {
			return err
		}
		return b.send(ctx, chatID, msgAskSeverity, severityKeyboard())

	case StepSeverity:
		return b.send(ctx, chatID, msgUseSeverityButtons)

	case StepLocation:
		if text == "" {
			return b.send(ctx, chatID, msgLocationMissing)
		}
		if isSkip(text) {
			return b.submitReport(ctx, session, nil)
		}
		return b.submitReport(ctx, session, utils.ToPtr(text))
	}
	return b.sessions.Delete(ctx, chatID)
}

func (b *Bot) submitReport(ctx context.Context, session *Session, location *string) error {
	chatID := session.ChatID
	draft := session.Report

	cmd := services.CreateFindingCommand{
		ReporterID:  draft.ReporterID,
		AreaID:      draft.AreaID,
		Description: draft.Description,
		Severity:    draft.Severity,
		Location:    location,
	}
	if draft.PhotoFileID != "" {
		file, err := b.tg.DownloadFile(ctx, draft.PhotoFileID)
		if err != nil {
			b.logger.Error("Photo download failed", zap.String("file_id", draft.PhotoFileID), zap.Error(err))
			_ = b.sessions.Delete(ctx, chatID)
			return b.send(ctx, chatID, msgPhotoFailed)
		}
		cmd.Photos = []services.PhotoUpload{{
			Content:  bytes.NewReader(file.Content),
			Size:     int64(len(file.Content)),
			FileName: file.FileName(),
		}}
	}

	finding, err := b.findings.Create(ctx, cmd)
	if err != nil {
		if errors.Is(err, apperrors.ErrRetryExhausted) {
			return b.send(ctx, chatID, msgRegisterBusy)
		}
		b.logger.Error("Bot report failed",
			zap.String("reporter_id", draft.ReporterID.String()),
			zap.Error(err),
		)
		if delErr := b.sessions.Delete(ctx, chatID); delErr != nil {
			return delErr
		}
		if len(cmd.Photos) > 0 && errors.Is(err, apperrors.ErrStorage) {
			return b.send(ctx, chatID, msgPhotoFailed)
		}
		return b.send(ctx, chatID, msgSaveFailed)
	}

	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logger.Warn("Session cleanup failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return b.send(ctx, chatID, findingRecorded(finding, len(cmd.Photos) > 0))
}
