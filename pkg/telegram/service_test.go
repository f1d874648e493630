package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler func(method string, body map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			_, _ = w.Write([]byte("raw-photo"))
			return
		}
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		raw, _ := io.ReadAll(r.Body)
		body := map[string]interface{}{}
		_ = json.Unmarshal(raw, &body)

		code, resp := handler(method, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestService_SendMessageWithKeyboard(t *testing.T) {
	var got map[string]interface{}
	srv := newTestServer(t, func(method string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "sendMessage", method)
		got = body
		return http.StatusOK, `{"ok":true,"result":{}}`
	})

	svc := NewService(srv.URL, "TOKEN", time.Second, zap.NewNop())
	err := svc.SendMessage(context.Background(), 42, "<b>hi</b>", WithHTML(),
		WithKeyboard([][]InlineKeyboardButton{{{Text: "A", CallbackData: "area_1"}}}))
	require.NoError(t, err)

	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	markup := got["reply_markup"].(map[string]interface{})
	assert.Len(t, markup["inline_keyboard"], 1)
}

func TestService_APIError(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]interface{}) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	})

	svc := NewService(srv.URL, "TOKEN", time.Second, zap.NewNop())
	err := svc.SendMessage(context.Background(), 1, "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestService_DownloadFile(t *testing.T) {
	srv := newTestServer(t, func(method string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "getFile", method)
		assert.Equal(t, "FILE1", body["file_id"])
		return http.StatusOK, `{"ok":true,"result":{"file_id":"FILE1","file_path":"photos/file_7.jpg"}}`
	})

	svc := NewService(srv.URL, "TOKEN", time.Second, zap.NewNop())
	f, err := svc.DownloadFile(context.Background(), "FILE1")
	require.NoError(t, err)
	assert.Equal(t, "file_7.jpg", f.FileName())
	assert.Equal(t, "raw-photo", string(f.Content))
}

func TestService_MissingToken(t *testing.T) {
	svc := NewService("http://127.0.0.1:1", "", time.Second, zap.NewNop())
	assert.Error(t, svc.SendMessage(context.Background(), 1, "x"))
}

func TestMessage_LargestPhoto(t *testing.T) {
	m := &Message{Photo: []PhotoSize{{FileID: "s", Width: 90, Height: 90}, {FileID: "l", Width: 1280, Height: 960}, {FileID: "m", Width: 320, Height: 240}}}
	assert.Equal(t, "l", m.LargestPhoto().FileID)
	assert.Nil(t, (&Message{}).LargestPhoto())
}
