package bot

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"safety-inspection/internal/dto"
	"safety-inspection/internal/entities"
	"safety-inspection/internal/services"
	apperrors "safety-inspection/pkg/errors"
	"safety-inspection/pkg/telegram"
)

type outgoing struct {
	ChatID    int64
	MessageID int
	Text      string
	ParseMode string
	Markup    string
	Edit      bool
}

type fakeTelegram struct {
	mu          sync.Mutex
	out         []outgoing
	answered    []string
	commands    []telegram.BotCommand
	downloadErr error
}

func record(chatID int64, messageID int, text string, edit bool, options []telegram.MessageOption) outgoing {
	mode, markup := telegram.ApplyOptions(options...)
	o := outgoing{ChatID: chatID, MessageID: messageID, Text: text, ParseMode: mode, Edit: edit}
	if markup != nil {
		raw, _ := json.Marshal(markup)
		o.Markup = string(raw)
	}
	return o
}

func (f *fakeTelegram) SendMessage(_ context.Context, chatID int64, text string, options ...telegram.MessageOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, record(chatID, 0, text, false, options))
	return nil
}

func (f *fakeTelegram) EditMessageText(_ context.Context, chatID int64, messageID int, text string, options ...telegram.MessageOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, record(chatID, messageID, text, true, options))
	return nil
}

func (f *fakeTelegram) AnswerCallbackQuery(_ context.Context, id string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeTelegram) DownloadFile(_ context.Context, fileID string) (*telegram.DownloadedFile, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &telegram.DownloadedFile{FileID: fileID, FilePath: "photos/file_7.jpg", Content: []byte("jpeg-bytes")}, nil
}

func (f *fakeTelegram) SetWebhook(context.Context, string, string) error { return nil }
func (f *fakeTelegram) DeleteWebhook(context.Context) error              { return nil }

func (f *fakeTelegram) SetMyCommands(_ context.Context, commands []telegram.BotCommand) error {
	f.commands = commands
	return nil
}

func (f *fakeTelegram) GetUpdates(context.Context, int64, time.Duration) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeTelegram) last() outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return outgoing{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeTelegram) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.out)
}

type fakeUsers struct {
	mu          sync.Mutex
	byTelegram  map[int64]*entities.User
	registerErr error
	registered  []dto.TelegramRegistrationDTO
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byTelegram: make(map[int64]*entities.User)}
}

func (f *fakeUsers) add(telegramID int64, active bool) *entities.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &entities.User{
		ID:         uuid.New(),
		TelegramID: &telegramID,
		FullName:   "Jordan Reyes",
		StaffID:    "S-1001",
		Department: "Production",
		Section:    "Line A",
		Role:       entities.RoleReporter,
		IsActive:   active,
	}
	u.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.byTelegram[telegramID] = u
	return u
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, telegramID int64) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byTelegram[telegramID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) RegisterFromTelegram(_ context.Context, payload dto.TelegramRegistrationDTO) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, payload)
	telegramID := payload.TelegramID
	u := &entities.User{
		ID:         uuid.New(),
		TelegramID: &telegramID,
		FullName:   payload.FullName,
		StaffID:    payload.StaffID,
		Department: payload.Department,
		Section:    payload.Section,
		Role:       entities.RoleReporter,
		IsActive:   true,
	}
	f.byTelegram[telegramID] = u
	return u, nil
}

type fakeAreas struct {
	roots []entities.Area
}

func (f *fakeAreas) ListRoots(_ context.Context, limit int) ([]entities.Area, error) {
	if len(f.roots) > limit {
		return f.roots[:limit], nil
	}
	return f.roots, nil
}

type fakeFindings struct {
	mu        sync.Mutex
	created   []services.CreateFindingCommand
	photos    [][]byte
	createErr error
	recent    []entities.Finding
	seq       int
}

func (f *fakeFindings) Create(_ context.Context, cmd services.CreateFindingCommand) (*entities.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, p := range cmd.Photos {
		data, err := io.ReadAll(p.Content)
		if err != nil {
			return nil, err
		}
		f.photos = append(f.photos, data)
	}
	f.created = append(f.created, cmd)
	f.seq++
	severity := cmd.Severity
	if severity == "" {
		severity = entities.SeverityMedium
	}
	return &entities.Finding{
		ID:          uuid.New(),
		ReportID:    "SF-2024-000" + string(rune('0'+f.seq)),
		ReporterID:  cmd.ReporterID,
		AreaID:      cmd.AreaID,
		Description: cmd.Description,
		Severity:    severity,
		Status:      entities.StatusOpen,
		Location:    cmd.Location,
	}, nil
}

func (f *fakeFindings) RecentByReporter(_ context.Context, _ uuid.UUID, limit int) ([]entities.Finding, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}
