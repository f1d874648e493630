package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultAPIURL = "https://api.telegram.org"

type ServiceInterface interface {
	SendMessage(ctx context.Context, chatID int64, text string, options ...MessageOption) error
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	DownloadFile(ctx context.Context, fileID string) (*DownloadedFile, error)
	SetWebhook(ctx context.Context, url, secretToken string) error
	DeleteWebhook(ctx context.Context) error
	SetMyCommands(ctx context.Context, commands []BotCommand) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

type DownloadedFile struct {
	FileID   string
	FilePath string
	Content  []byte
}

// FileName is the base name Telegram stored the file under.
func (f *DownloadedFile) FileName() string {
	if f.FilePath == "" {
		return f.FileID
	}
	return path.Base(f.FilePath)
}

type Service struct {
	botToken string
	client   *resty.Client
	logger   *zap.Logger
}

// NewService builds a Bot API client. pollTimeout sizes the HTTP timeout so long polling fits.
func NewService(apiURL, botToken string, pollTimeout time.Duration, logger *zap.Logger) *Service {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(pollTimeout+15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json")

	return &Service{botToken: botToken, client: client, logger: logger}
}

type sendMessageRequest struct {
	ChatID      int64       `json:"chat_id"`
	MessageID   int         `json:"message_id,omitempty"`
	Text        string      `json:"text"`
	ParseMode   string      `json:"parse_mode,omitempty"`
	ReplyMarkup interface{} `json:"reply_markup,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]ReplyKeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool                    `json:"resize_keyboard"`
	OneTimeKeyboard bool                    `json:"one_time_keyboard,omitempty"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

type MessageOption func(*sendMessageRequest)

func WithKeyboard(rows [][]InlineKeyboardButton) MessageOption {
	return func(req *sendMessageRequest) {
		if len(rows) > 0 {
			req.ReplyMarkup = inlineKeyboardMarkup{InlineKeyboard: rows}
		}
	}
}

func WithReplyKeyboard(rows [][]ReplyKeyboardButton) MessageOption {
	return func(req *sendMessageRequest) {
		if len(rows) > 0 {
			req.ReplyMarkup = replyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true, OneTimeKeyboard: true}
		}
	}
}

func WithRemoveKeyboard() MessageOption {
	return func(req *sendMessageRequest) {
		req.ReplyMarkup = replyKeyboardRemove{RemoveKeyboard: true}
	}
}

func WithHTML() MessageOption {
	return func(req *sendMessageRequest) {
		req.ParseMode = "HTML"
	}
}

// ApplyOptions exposes the effect of options, used by fakes in tests.
func ApplyOptions(options ...MessageOption) (parseMode string, markup interface{}) {
	req := &sendMessageRequest{}
	for _, opt := range options {
		opt(req)
	}
	return req.ParseMode, req.ReplyMarkup
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// APIError is returned when Telegram answers ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: code %d, %s", e.Method, e.Code, e.Description)
}

func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, options ...MessageOption) error {
	req := &sendMessageRequest{ChatID: chatID, Text: text}
	for _, opt := range options {
		opt(req)
	}
	return s.call(ctx, "sendMessage", req, nil)
}

// EditMessageText falls back to a new message when there is nothing to edit.
func (s *Service) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, options ...MessageOption) error {
	if messageID == 0 {
		return s.SendMessage(ctx, chatID, text, options...)
	}
	req := &sendMessageRequest{ChatID: chatID, MessageID: messageID, Text: text}
	for _, opt := range options {
		opt(req)
	}
	return s.call(ctx, "editMessageText", req, nil)
}

func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	if callbackQueryID == "" {
		return fmt.Errorf("callbackQueryID must not be empty")
	}
	payload := map[string]interface{}{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
	}
	return s.call(ctx, "answerCallbackQuery", payload, nil)
}

func (s *Service) DownloadFile(ctx context.Context, fileID string) (*DownloadedFile, error) {
	var file File
	if err := s.call(ctx, "getFile", map[string]string{"file_id": fileID}, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram returned no file_path for %s", fileID)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/file/bot%s/%s", s.botToken, file.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", file.FilePath, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to download %s: http %d", file.FilePath, resp.StatusCode())
	}

	return &DownloadedFile{FileID: fileID, FilePath: file.FilePath, Content: resp.Body()}, nil
}

// SetWebhook registers url; Telegram echoes secretToken back in every webhook request when it is set.
func (s *Service) SetWebhook(ctx context.Context, url, secretToken string) error {
	payload := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secretToken != "" {
		payload["secret_token"] = secretToken
	}
	return s.call(ctx, "setWebhook", payload, nil)
}

func (s *Service) DeleteWebhook(ctx context.Context) error {
	return s.call(ctx, "deleteWebhook", map[string]interface{}{}, nil)
}

func (s *Service) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return s.call(ctx, "setMyCommands", map[string]interface{}{"commands": commands}, nil)
}

func (s *Service) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := s.call(ctx, "getUpdates", map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (s *Service) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	if s.botToken == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}

	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/bot%s/%s", s.botToken, method))
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}

	if !out.OK {
		s.logger.Debug("Telegram API error",
			zap.String("method", method),
			zap.Int("http_status", resp.StatusCode()),
			zap.String("description", out.Description),
		)
		return &APIError{Method: method, Code: out.ErrorCode, Description: out.Description}
	}

	if result != nil && len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("telegram %s: failed to decode result: %w", method, err)
		}
	}
	return nil
}

// EscapeHTML escapes user-provided text for parse_mode=HTML messages.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}
