package router

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/toolstock/internal/domain/models"
	"github.com/mamadbah2/toolstock/internal/metrics"
	"github.com/mamadbah2/toolstock/internal/server/handlers"
)

type fakeService struct {
	updates  []models.Update
	outbound []models.OutboundMessageRequest
	err      error
}

func (f *fakeService) HandleUpdate(_ context.Context, u models.Update) error {
	f.updates = append(f.updates, u)
	return f.err
}

func (f *fakeService) SendOutbound(_ context.Context, req models.OutboundMessageRequest) error {
	f.outbound = append(f.outbound, req)
	return f.err
}

func serve(t *testing.T, engine http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	engine := New(handlers.NewWebhookHandler(&fakeService{}, "", nil), metrics.New(), nil)

	for _, path := range []string{"/", "/health"} {
		rec := serve(t, engine, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "OK", rec.Body.String(), path)
	}

	rec := serve(t, engine, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	engine := New(handlers.NewWebhookHandler(&fakeService{}, "", nil), metrics.New(), nil)
	serve(t, engine, http.MethodGet, "/health", "", nil)

	rec := serve(t, engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/health",status="OK"} 1`)
}

func TestWebhookSecret(t *testing.T) {
	svc := &fakeService{}
	engine := New(handlers.NewWebhookHandler(svc, "s3cret", nil), nil, nil)
	body := `{"update_id":5,"message":{"message_id":1,"from":{"id":2,"first_name":"A"},"chat":{"id":2,"type":"private"},"text":"/start"}}`

	rec := serve(t, engine, http.MethodPost, WebhookPath, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.updates)

	rec = serve(t, engine, http.MethodPost, WebhookPath, body, map[string]string{handlers.SecretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.updates, 1)
	assert.Equal(t, int64(5), svc.updates[0].UpdateID)
	assert.Equal(t, "/start", svc.updates[0].Message.Text)
}

func TestWebhookAcknowledgesHandlingFailures(t *testing.T) {
	svc := &fakeService{err: errors.New("telegram down")}
	engine := New(handlers.NewWebhookHandler(svc, "", nil), nil, nil)

	rec := serve(t, engine, http.MethodPost, WebhookPath, `{"update_id":1}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, engine, http.MethodPost, WebhookPath, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage(t *testing.T) {
	svc := &fakeService{}
	engine := New(handlers.NewWebhookHandler(svc, "", nil), nil, nil)

	rec := serve(t, engine, http.MethodPost, "/send-message", `{"chat_id":7,"message":"stock check at 5pm"}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, svc.outbound, 1)
	assert.Equal(t, int64(7), svc.outbound[0].ChatID)

	rec = serve(t, engine, http.MethodPost, "/send-message", `{"chat_id":7}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.err = errors.New("blocked")
	rec = serve(t, engine, http.MethodPost, "/send-message", `{"chat_id":7,"message":"x"}`, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "unable to send message"))
}
