package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/mamadbah2/toolstock/internal/config"
	"github.com/mamadbah2/toolstock/internal/domain/models"
)

// LongPollTimeout is the getUpdates wait, kept below the HTTP client timeout.
const LongPollTimeout = 10 * time.Second

// Client exposes the Telegram Bot API operations used by the application.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *models.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	SendPhotoURL(ctx context.Context, chatID int64, url, caption string, keyboard *models.InlineKeyboardMarkup) error
	SendPhotoFile(ctx context.Context, chatID int64, path, caption string, keyboard *models.InlineKeyboardMarkup) error
	GetFile(ctx context.Context, fileID string) (*models.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
	GetUpdates(ctx context.Context, offset int64) ([]models.Update, error)
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
}

// APIClient is a resty-backed implementation of Client. Outbound calls share
// one rate limiter.
type APIClient struct {
	httpClient *resty.Client
	limiter    *rate.Limiter
	token      string
	fileBase   string
}

// NewClient builds a Telegram API client using the provided configuration values.
func NewClient(cfg config.TelegramConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/bot%s", base, cfg.Token)).
		SetHeader("Accept", "application/json").
		SetTimeout(LongPollTimeout + 15*time.Second)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 25
	}
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &APIClient{
		httpClient: restyClient,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		token:      cfg.Token,
		fileBase:   fmt.Sprintf("%s/file/bot%s", base, cfg.Token),
	}
}

// apiResponse is the envelope every Bot API method answers with.
type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// APIError is returned when Telegram rejects a call.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error: method=%s, code=%d, description=%s", e.Method, e.Code, e.Description)
}

// NotModified reports the harmless error Telegram returns when an edit does
// not change the message.
func NotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified")
}

func call[T any](ctx context.Context, c *APIClient, method string, payload any, limited bool) (T, error) {
	var zero T

	if limited {
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("telegram %s: %w", method, err)
		}
	}

	envelope := new(apiResponse[T])
	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(envelope).
		SetError(envelope)

	if form, ok := payload.(multipartPayload); ok {
		req.SetFile(form.field, form.path).SetFormData(form.values)
	} else if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Post(method)
	if err != nil {
		return zero, fmt.Errorf("telegram %s: %w", method, c.redact(err))
	}

	if resp.StatusCode() >= http.StatusBadRequest || !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return zero, &APIError{Method: method, Code: code, Description: envelope.Description}
	}

	return envelope.Result, nil
}

type multipartPayload struct {
	field  string
	path   string
	values map[string]string
}

// redact keeps the bot token out of transport errors, which embed the URL.
func (c *APIClient) redact(err error) error {
	if c.token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
}

func marshalKeyboard(keyboard *models.InlineKeyboardMarkup) (string, error) {
	raw, err := json.Marshal(keyboard)
	if err != nil {
		return "", fmt.Errorf("encode reply markup: %w", err)
	}
	return string(raw), nil
}

type sendMessageRequest struct {
	ChatID      int64                        `json:"chat_id"`
	Text        string                       `json:"text"`
	ParseMode   string                       `json:"parse_mode,omitempty"`
	ReplyMarkup *models.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *APIClient) SendMessage(ctx context.Context, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	msg, err := call[models.Message](ctx, c, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}, true)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

type editMessageRequest struct {
	ChatID      int64                        `json:"chat_id"`
	MessageID   int64                        `json:"message_id"`
	Text        string                       `json:"text"`
	ParseMode   string                       `json:"parse_mode,omitempty"`
	ReplyMarkup *models.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *APIClient) EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *models.InlineKeyboardMarkup) error {
	_, err := call[any](ctx, c, "editMessageText", editMessageRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}, true)
	return err
}

func (c *APIClient) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := call[bool](ctx, c, "answerCallbackQuery", payload, true)
	return err
}

type sendPhotoRequest struct {
	ChatID      int64                        `json:"chat_id"`
	Photo       string                       `json:"photo"`
	Caption     string                       `json:"caption,omitempty"`
	ParseMode   string                       `json:"parse_mode,omitempty"`
	ReplyMarkup *models.InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *APIClient) SendPhotoURL(ctx context.Context, chatID int64, url, caption string, keyboard *models.InlineKeyboardMarkup) error {
	_, err := call[models.Message](ctx, c, "sendPhoto", sendPhotoRequest{
		ChatID:      chatID,
		Photo:       url,
		Caption:     caption,
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	}, true)
	return err
}

func (c *APIClient) SendPhotoFile(ctx context.Context, chatID int64, path, caption string, keyboard *models.InlineKeyboardMarkup) error {
	values := map[string]string{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"caption":    caption,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		markup, err := marshalKeyboard(keyboard)
		if err != nil {
			return err
		}
		values["reply_markup"] = markup
	}

	_, err := call[models.Message](ctx, c, "sendPhoto", multipartPayload{field: "photo", path: path, values: values}, true)
	return err
}

func (c *APIClient) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := call[models.File](ctx, c, "getFile", map[string]string{"file_id": fileID}, false)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DownloadFile fetches the content of a file previously resolved by GetFile.
func (c *APIClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, errors.New("telegram file path is empty")
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.fileBase + "/" + strings.TrimPrefix(filePath, "/"))
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w", c.redact(err))
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &APIError{Method: "download", Code: resp.StatusCode(), Description: resp.Status()}
	}
	return resp.Body(), nil
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

func (c *APIClient) GetUpdates(ctx context.Context, offset int64) ([]models.Update, error) {
	return call[[]models.Update](ctx, c, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        int(LongPollTimeout / time.Second),
		AllowedUpdates: []string{"message", "callback_query"},
	}, false)
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	MaxConnections int      `json:"max_connections"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// SetWebhook registers url with a single delivery connection: Telegram then
// waits for each webhook response before sending the next update, so updates
// arrive in update_id order, the same as with long polling.
func (c *APIClient) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", setWebhookRequest{
		URL:            url,
		SecretToken:    secret,
		MaxConnections: 1,
		AllowedUpdates: []string{"message", "callback_query"},
	}, false)
	return err
}

func (c *APIClient) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", nil, false)
	return err
}
