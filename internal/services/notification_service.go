package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/authz"
	"safety-inspection/internal/dto"
	"safety-inspection/internal/repositories"
	"safety-inspection/pkg/constants"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
)

type NotificationServiceInterface interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (*dto.NotificationSettingsDTO, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, payload dto.UpdateNotificationSettingsDTO) (*dto.NotificationSettingsDTO, error)
	SendTest(ctx context.Context, principal *authz.Principal) error
}

// NotificationService keeps per-user preferences in the cache store without expiry.
type NotificationService struct {
	cache    repositories.CacheRepositoryInterface
	telegram telegram.ServiceInterface
	logger   *zap.Logger
}

func NewNotificationService(
	cache repositories.CacheRepositoryInterface,
	tg telegram.ServiceInterface,
	logger *zap.Logger,
) NotificationServiceInterface {
	return &NotificationService{cache: cache, telegram: tg, logger: logger}
}

func (s *NotificationService) GetSettings(ctx context.Context, userID uuid.UUID) (*dto.NotificationSettingsDTO, error) {
	settings := dto.DefaultNotificationSettings()

	raw, err := s.cache.Get(ctx, fmt.Sprintf(constants.CacheKeyNotificationSettings, userID))
	if err != nil {
		if errors.Is(err, repositories.ErrCacheMiss) {
			return &settings, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.logger.Warn("Corrupt notification settings, using defaults", zap.String("user_id", userID.String()), zap.Error(err))
		defaults := dto.DefaultNotificationSettings()
		return &defaults, nil
	}
	return &settings, nil
}

func (s *NotificationService) UpdateSettings(ctx context.Context, userID uuid.UUID, payload dto.UpdateNotificationSettingsDTO) (*dto.NotificationSettingsDTO, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if payload.NewFinding.Valid {
		settings.NewFinding = payload.NewFinding.Bool
	}
	if payload.StatusChange.Valid {
		settings.StatusChange = payload.StatusChange.Bool
	}
	if payload.DailySummary.Valid {
		settings.DailySummary = payload.DailySummary.Bool
	}
	if payload.WeeklySummary.Valid {
		settings.WeeklySummary = payload.WeeklySummary.Bool
	}
	if payload.DailySummaryTime.Valid {
		settings.DailySummaryTime = payload.DailySummaryTime.String
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, fmt.Sprintf(constants.CacheKeyNotificationSettings, userID), raw, 0); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *NotificationService) SendTest(ctx context.Context, principal *authz.Principal) error {
	if principal == nil {
		return apperrors.ErrUnauthorized
	}
	if principal.TelegramID == nil {
		return apperrors.NewBadRequestError("No Telegram account linked")
	}
	text := fmt.Sprintf("🔔 Test notification for %s. Notifications are working.", principal.FullName)
	if err := s.telegram.SendMessage(ctx, *principal.TelegramID, text); err != nil {
		s.logger.Error("Test notification failed", zap.String("staff_id", principal.StaffID), zap.Error(err))
		return err
	}
	return nil
}
