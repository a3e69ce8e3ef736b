package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

func newTestClient(t *testing.T, handler http.Handler) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TelegramConfig{BaseURL: srv.URL + "/", Token: "123:abc", RateLimit: 100})
}

func TestSendMessagePostsJSON(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot123:abc/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":42,"chat":{"id":7,"type":"private"}}}`)
	})
	client := newTestClient(t, mux)

	keyboard := &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{{Text: "Menu", CallbackData: "menu"}}}}
	msg, err := client.SendMessage(context.Background(), 7, "hello", keyboard)
	require.NoError(t, err)

	assert.Equal(t, int64(42), msg.MessageID)
	assert.Equal(t, float64(7), got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Contains(t, got, "reply_markup")
}

func TestAPIErrorCarriesDescription(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot123:abc/editMessageText", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
	})
	client := newTestClient(t, mux)

	err := client.EditMessageText(context.Background(), 7, 1, "same", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.True(t, NotModified(err))
}

func TestGetFileAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot123:abc/getFile", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"f1","file_path":"photos/file_1.jpg"}}`)
	})
	mux.HandleFunc("GET /file/bot123:abc/photos/file_1.jpg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	client := newTestClient(t, mux)

	file, err := client.GetFile(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "photos/file_1.jpg", file.FilePath)

	data, err := client.DownloadFile(context.Background(), file.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = client.DownloadFile(context.Background(), "photos/missing.jpg")
	assert.Error(t, err)
}

func TestGetUpdates(t *testing.T) {
	var got getUpdatesRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot123:abc/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":5,"type":"private"},"text":"/start"}},
			{"update_id":11,"callback_query":{"id":"cb","from":{"id":5,"first_name":"A"},"data":"menu"}}
		]}`)
	})
	client := newTestClient(t, mux)

	updates, err := client.GetUpdates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, int64(10), got.Offset)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, "menu", updates[1].CallbackQuery.Data)
}

func TestSetWebhookUsesOneConnection(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot123:abc/setWebhook", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.SetWebhook(context.Background(), "https://bot.test/telegram/webhook", "s3cret"))
	assert.Equal(t, float64(1), got["max_connections"])
	assert.Equal(t, "s3cret", got["secret_token"])
	assert.Equal(t, []any{"message", "callback_query"}, got["allowed_updates"])
}

func TestTransportErrorHidesToken(t *testing.T) {
	client := NewClient(config.TelegramConfig{BaseURL: "http://127.0.0.1:1", Token: "secret-token"})

	err := client.DeleteWebhook(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
