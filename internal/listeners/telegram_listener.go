package listeners

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/events"
	"safety-inspection/internal/repositories"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/eventbus"
	"safety-inspection/pkg/telegram"
)

const descriptionPreview = 200

// TelegramListener pushes finding events to admins and reporters through the bot.
type TelegramListener struct {
	userRepo      repositories.UserRepositoryInterface
	notifications services.NotificationServiceInterface
	telegram      telegram.ServiceInterface
	logger        *zap.Logger
}

func NewTelegramListener(
	userRepo repositories.UserRepositoryInterface,
	notifications services.NotificationServiceInterface,
	tg telegram.ServiceInterface,
	logger *zap.Logger,
) *TelegramListener {
	return &TelegramListener{userRepo: userRepo, notifications: notifications, telegram: tg, logger: logger}
}

func (l *TelegramListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.FindingCreatedName, l.handleCreated)
	bus.Subscribe(events.FindingStatusChangedName, l.handleStatusChanged)
}

func (l *TelegramListener) handleCreated(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.FindingCreatedEvent)
	if !ok {
		return nil
	}
	text := formatCreated(e)
	return l.notifyAdmins(ctx, e.Reporter.ID, text, func(s *dto.NotificationSettingsDTO) bool { return s.NewFinding })
}

func (l *TelegramListener) handleStatusChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.FindingStatusChangedEvent)
	if !ok {
		return nil
	}
	text := formatStatusChanged(e)

	if e.Finding.ReporterID != e.ActorID {
		reporter, err := l.userRepo.FindByID(ctx, e.Finding.ReporterID)
		switch {
		case err != nil:
			l.logger.Warn("Reporter lookup failed", zap.String("report_id", e.Finding.ReportID), zap.Error(err))
		case reporter.IsActive && reporter.TelegramID != nil:
			l.send(ctx, *reporter.TelegramID, text)
		}
	}
	return l.notifyAdmins(ctx, e.ActorID, text, func(s *dto.NotificationSettingsDTO) bool { return s.StatusChange })
}

// notifyAdmins sends text to every notifiable admin except skip whose settings pass want.
func (l *TelegramListener) notifyAdmins(ctx context.Context, skip uuid.UUID, text string, want func(*dto.NotificationSettingsDTO) bool) error {
	admins, err := l.userRepo.ListNotifiableAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, admin := range admins {
		if admin.ID == skip || admin.TelegramID == nil {
			continue
		}
		settings, err := l.notifications.GetSettings(ctx, admin.ID)
		if err != nil {
			l.logger.Warn("Notification settings unavailable, using defaults", zap.String("user_id", admin.ID.String()), zap.Error(err))
		} else if !want(settings) {
			continue
		}
		l.send(ctx, *admin.TelegramID, text)
	}
	return nil
}

func (l *TelegramListener) send(ctx context.Context, chatID int64, text string) {
	if err := l.telegram.SendMessage(ctx, chatID, text, telegram.WithHTML()); err != nil {
		l.logger.Error("Telegram notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= descriptionPreview {
		return s
	}
	return string(r[:descriptionPreview]) + "..."
}

func formatCreated(e events.FindingCreatedEvent) string {
	f := e.Finding
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 <b>New safety finding %s</b>\n\n", telegram.EscapeHTML(f.ReportID))
	fmt.Fprintf(&sb, "%s Severity: <b>%s</b>\n", f.Severity.Emoji(), f.Severity.Label())
	fmt.Fprintf(&sb, "📍 Area: %s\n", telegram.EscapeHTML(e.AreaName))
	if f.Location != nil && *f.Location != "" {
		fmt.Fprintf(&sb, "📌 Location: %s\n", telegram.EscapeHTML(*f.Location))
	}
	fmt.Fprintf(&sb, "👤 Reporter: %s (%s)\n", telegram.EscapeHTML(e.Reporter.FullName), telegram.EscapeHTML(e.Reporter.StaffID))
	if e.PhotoCount > 0 {
		fmt.Fprintf(&sb, "📷 Photos: %d\n", e.PhotoCount)
	}
	fmt.Fprintf(&sb, "\n%s", telegram.EscapeHTML(preview(f.Description)))
	return sb.String()
}

func formatStatusChanged(e events.FindingStatusChangedEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 <b>Finding %s updated</b>\n\n", telegram.EscapeHTML(e.Finding.ReportID))
	fmt.Fprintf(&sb, "Status: %s → <b>%s</b>\n", e.OldStatus.Label(), e.NewStatus.Label())
	fmt.Fprintf(&sb, "By: %s\n", telegram.EscapeHTML(e.ActorName))
	if e.Notes != nil && strings.TrimSpace(*e.Notes) != "" {
		fmt.Fprintf(&sb, "\n💬 %s", telegram.EscapeHTML(*e.Notes))
	}
	if e.NewStatus == entities.StatusClosed {
		sb.WriteString("\n\n✅ Thank you for reporting!")
	}
	return sb.String()
}
