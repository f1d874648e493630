package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/services"
	"safety-inspection/pkg/telegram"
)

const (
	updateTimeout         = 45 * time.Second
	maxConcurrentRequests = 50
	maxMessageAge         = 2 * time.Minute
	updateDedupTTL        = 10 * time.Minute
	dedupCleanupInterval  = time.Minute
	sessionSweepInterval  = time.Minute
)

type UserDirectory interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	RegisterFromTelegram(ctx context.Context, payload dto.TelegramRegistrationDTO) (*entities.User, error)
}

type AreaCatalog interface {
	ListRoots(ctx context.Context, limit int) ([]entities.Area, error)
}

type FindingDesk interface {
	Create(ctx context.Context, cmd services.CreateFindingCommand) (*entities.Finding, error)
	RecentByReporter(ctx context.Context, reporterID uuid.UUID, limit int) ([]entities.Finding, error)
}

// Bot drives the registration and reporting conversations. Updates may arrive from the
// webhook or the poller; both end up in HandleUpdate.
type Bot struct {
	users    UserDirectory
	areas    AreaCatalog
	findings FindingDesk
	tg       telegram.ServiceInterface
	sessions SessionStore

	dedup  *Deduplicator
	queue  *chatDispatcher
	logger *zap.Logger
	now    func() time.Time
}

func New(
	users UserDirectory,
	areas AreaCatalog,
	findings FindingDesk,
	tg telegram.ServiceInterface,
	sessions SessionStore,
	logger *zap.Logger,
) *Bot {
	b := &Bot{
		users:    users,
		areas:    areas,
		findings: findings,
		tg:       tg,
		sessions: sessions,
		dedup:    NewDeduplicator(),
		logger:   logger.Named("bot"),
		now:      time.Now,
	}
	b.queue = newChatDispatcher(maxConcurrentRequests, b.processQueued)
	return b
}

// Commands is the list published with setMyCommands.
func Commands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "start", Description: "Start the bot or view your profile"},
		{Command: "menu", Description: "Show bot menu"},
		{Command: "register", Description: "Register your account"},
		{Command: "report", Description: "Report a new safety finding"},
		{Command: "myreports", Description: "View your reported findings"},
		{Command: "help", Description: "Show help information"},
		{Command: "cancel", Description: "Cancel current operation"},
	}
}

func (b *Bot) RegisterCommands(ctx context.Context) error {
	return b.tg.SetMyCommands(ctx, Commands())
}

// Run keeps the housekeeping loops alive until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	if m, ok := b.sessions.(*MemoryStore); ok {
		go m.Sweep(ctx, sessionSweepInterval)
	}
	b.dedup.Cleanup(ctx, dedupCleanupInterval)
}

// HandleUpdate queues update behind earlier updates of the same chat. It only blocks
// while every worker slot is taken by other chats.
func (b *Bot) HandleUpdate(update telegram.Update) {
	if !b.dedup.TryAcquire(fmt.Sprintf("update:%d", update.UpdateID), updateDedupTTL) {
		b.logger.Debug("Duplicate update dropped", zap.Int64("update_id", update.UpdateID))
		return
	}
	if !b.isRecent(&update) {
		return
	}

	chatID := update.ChatID()
	if chatID == 0 {
		return
	}
	b.queue.Dispatch(chatID, update)
}

// Wait blocks until every queued update is done.
func (b *Bot) Wait() {
	b.queue.Wait()
}

func (b *Bot) processQueued(update telegram.Update) {
	defer b.recoverPanic(update.UpdateID)

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()
	b.Process(ctx, update)
}

// Process handles one update synchronously. Callers must not run two updates of
// the same chat at once.
func (b *Bot) Process(ctx context.Context, update telegram.Update) {
	chatID := update.ChatID()
	if chatID == 0 {
		return
	}

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	}
	if err != nil {
		b.logger.Error("Update handling failed",
			zap.Int64("update_id", update.UpdateID),
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		_ = b.send(ctx, chatID, msgInternalError)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		return b.handleCommand(ctx, msg, text)
	}

	session, err := b.sessions.Get(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	if session == nil {
		return b.send(ctx, msg.Chat.ID, msgNoConversation)
	}
	switch session.Flow {
	case FlowRegister:
		return b.handleRegistrationInput(ctx, session, msg, text)
	case FlowReport:
		return b.handleReportInput(ctx, session, msg, text)
	}
	return b.sessions.Delete(ctx, msg.Chat.ID)
}

func (b *Bot) handleCallback(ctx context.Context, query *telegram.CallbackQuery) error {
	if err := b.tg.AnswerCallbackQuery(ctx, query.ID, ""); err != nil {
		b.logger.Warn("answerCallbackQuery failed", zap.Error(err))
	}
	if query.Message == nil {
		return nil
	}
	chatID := query.Message.Chat.ID
	data := query.Data

	switch {
	case strings.HasPrefix(data, "menu_"):
		return b.handleMenu(ctx, query, strings.TrimPrefix(data, "menu_"))
	case strings.HasPrefix(data, "area_"), strings.HasPrefix(data, "sev_"):
		session, err := b.sessions.Get(ctx, chatID)
		if err != nil {
			return err
		}
		if session == nil || session.Flow != FlowReport {
			return b.send(ctx, chatID, msgButtonExpired)
		}
		return b.handleReportCallback(ctx, session, query)
	}
	b.logger.Debug("Unknown callback", zap.String("data", data))
	return nil
}

func (b *Bot) isRecent(update *telegram.Update) bool {
	if update.Message == nil || update.Message.Date == 0 {
		return true
	}
	return b.now().Sub(time.Unix(update.Message.Date, 0)) <= maxMessageAge
}

func (b *Bot) recoverPanic(updateID int64) {
	if r := recover(); r != nil {
		b.logger.Error("PANIC while handling update",
			zap.Int64("update_id", updateID),
			zap.Any("panic", r),
			zap.Stack("stacktrace"))
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, options ...telegram.MessageOption) error {
	return b.tg.SendMessage(ctx, chatID, text, options...)
}

// edit replaces the text of the message carrying the pressed button, falling back to a new message.
func (b *Bot) edit(ctx context.Context, query *telegram.CallbackQuery, text string, options ...telegram.MessageOption) error {
	chatID := query.Message.Chat.ID
	if err := b.tg.EditMessageText(ctx, chatID, query.Message.MessageID, text, options...); err != nil {
		b.logger.Debug("editMessageText failed, sending instead", zap.Error(err))
		return b.send(ctx, chatID, text, options...)
	}
	return nil
}
