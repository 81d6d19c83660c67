package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-gateway/internal/backend"
	"github.com/capitalize-ai/chat-gateway/internal/cache"
	"github.com/capitalize-ai/chat-gateway/internal/cache/cachetest"
	"github.com/capitalize-ai/chat-gateway/internal/interaction"
	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/ratelimit"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/internal/telegram"
	"github.com/capitalize-ai/chat-gateway/internal/tenant"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

const updateBody = `{"update_id":10,"message":{"message_id":3,"date":1700000000,
	"chat":{"id":42,"type":"private"},
	"from":{"id":9,"is_bot":false,"first_name":"Alice","username":"alice"},
	"text":"Hello"}}`

// countingBackend counts every backend call the pipeline makes.
type countingBackend struct {
	mu       sync.Mutex
	calls    int
	tenant   *model.TenantConfig
	outbound []*model.Interaction
}

func (b *countingBackend) GetChatConfig(context.Context, model.ChatID) (*model.TenantConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.tenant == nil {
		return nil, backend.ErrNotFound
	}
	return b.tenant, nil
}

func (b *countingBackend) LinkChat(context.Context, model.ChatID, model.Sender) (*model.TenantConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return nil, backend.ErrNotFound
}

func (b *countingBackend) CreateInteraction(_ context.Context, in *model.Interaction) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.outbound = append(b.outbound, in)
	return "int-1", nil
}

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (d *recordingDispatcher) Send(_ context.Context, _ model.ChatID, text string, _ int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return false
	}
	d.sent = append(d.sent, text)
	return true
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.InteractionEvent) {}

type nopBot struct{ telegram.BotAPI }

func (nopBot) GetFile(tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{}, errors.New("unused")
}

type testServer struct {
	handler    http.Handler
	store      *cachetest.Recorder
	backend    *countingBackend
	dispatcher *recordingDispatcher
}

func newTestServer(t *testing.T, webhookSecret, jwtSecret string) *testServer {
	t.Helper()
	log := logger.NewNop()
	ts := &testServer{
		store:      cachetest.NewRecorder(cache.NewMemoryStore()),
		backend:    &countingBackend{tenant: &model.TenantConfig{TenantID: "t-1", AutoReplyEnabled: true}},
		dispatcher: &recordingDispatcher{},
	}
	gw := service.NewGateway(webhookSecret, service.Deps{
		Limiter:    ratelimit.New(ts.store, ratelimit.Config{KeyPrefix: "telegram:"}, log),
		Resolver:   tenant.NewResolver(ts.store, ts.backend, tenant.Config{KeyPrefix: "telegram:"}, log),
		Recorder:   interaction.NewRecorder(ts.backend, "TELEGRAM", log),
		Dispatcher: ts.dispatcher,
		Notifier:   nopNotifier{},
	}, log)

	ts.handler = NewRouter(RouterConfig{
		Health:              NewHealthHandler(ReadinessCheck{Name: "cache", Check: ts.store.Ping}),
		Webhook:             NewWebhookHandler(gw, telegram.NewConverter(nopBot{}, time.Second, log), log),
		Send:                NewSendHandler(gw, log),
		SendJWTSecret:       jwtSecret,
		SendRateLimit:       100,
		SendRateLimitWindow: time.Minute,
		Logger:              log,
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAccepted(t *testing.T) {
	ts := newTestServer(t, "s3cret", "")

	rec := ts.do(http.MethodPost, "/webhook/acme", updateBody, map[string]string{telegram.SecretHeader: "s3cret"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Len(t, ts.backend.outbound, 1)
	assert.Equal(t, "Hello", ts.backend.outbound[0].Content)
	assert.Len(t, ts.dispatcher.sent, 1)
}

func TestWebhookRejectsBadSecretWithoutSideEffects(t *testing.T) {
	ts := newTestServer(t, "s3cret", "")

	for _, secret := range []string{"", "wrong"} {
		headers := map[string]string{}
		if secret != "" {
			headers[telegram.SecretHeader] = secret
		}
		rec := ts.do(http.MethodPost, "/webhook/acme", updateBody, headers)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid secret"}`, rec.Body.String())
	}

	gets, sets, incrs := ts.store.Counts()
	assert.Zero(t, gets)
	assert.Zero(t, sets)
	assert.Zero(t, incrs)
	assert.Zero(t, ts.backend.count())
	assert.Empty(t, ts.dispatcher.sent)
}

func TestWebhookOpenModeWithoutSecret(t *testing.T) {
	ts := newTestServer(t, "", "")

	rec := ts.do(http.MethodPost, "/webhook/acme", updateBody, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookMalformedBody(t *testing.T) {
	ts := newTestServer(t, "", "")

	rec := ts.do(http.MethodPost, "/webhook/acme", "{not json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ts.backend.count())
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	ts := newTestServer(t, "", "")

	rec := ts.do(http.MethodPost, "/webhook/acme", `{"update_id":11,"callback_query":{"id":"q1"}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, ts.backend.count())
	_, _, incrs := ts.store.Counts()
	assert.Zero(t, incrs)
}

func TestSend(t *testing.T) {
	ts := newTestServer(t, "", "")

	rec := ts.do(http.MethodPost, "/send", `{"chatId":42,"text":"Hi from support","replyToMessageId":3}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"sent"}`, rec.Body.String())
	assert.Equal(t, []string{"Hi from support"}, ts.dispatcher.sent)
	require.Len(t, ts.backend.outbound, 1)
	assert.Equal(t, model.DirectionOutbound, ts.backend.outbound[0].Direction)
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing chat id", `{"text":"hi"}`, "Missing field: chatId"},
		{"missing text", `{"chatId":42}`, "Missing field: text"},
		{"empty text", `{"chatId":42,"text":"  "}`, "text cannot be empty"},
		{"bad chat id", `{"chatId":"abc","text":"hi"}`, "chat ID must be numeric or an @channel"},
		{"not json", `chatId=42`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "", "")

			rec := ts.do(http.MethodPost, "/send", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
			assert.Empty(t, ts.dispatcher.sent)
		})
	}
}

func TestSendPlatformFailure(t *testing.T) {
	ts := newTestServer(t, "", "")
	ts.dispatcher.fail = true

	rec := ts.do(http.MethodPost, "/send", `{"chatId":42,"text":"hi"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to send message"}`, rec.Body.String())
}

func TestSendRequiresJWTWhenConfigured(t *testing.T) {
	ts := newTestServer(t, "", "jwt-secret")

	rec := ts.do(http.MethodPost, "/send", `{"chatId":42,"text":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "agent-1"},
		TenantID:         "t-7",
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)

	rec = ts.do(http.MethodPost, "/send", `{"chatId":42,"text":"hi"}`, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.backend.outbound, 1)
	assert.Equal(t, "t-7", ts.backend.outbound[0].TenantID)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "", "")

	rec := ts.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	_, err := time.Parse(time.RFC3339Nano, body["timestamp"])
	assert.NoError(t, err)
}

func TestReady(t *testing.T) {
	ok := NewHealthHandler(ReadinessCheck{Name: "cache", Check: func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	ok.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewHealthHandler(
		ReadinessCheck{Name: "cache", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "nats", Check: func(context.Context) error { return errors.New("disconnected") }},
	)
	rec = httptest.NewRecorder()
	down.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","reason":"nats unavailable"}`, rec.Body.String())
}

func TestPollRunsPipeline(t *testing.T) {
	ts := newTestServer(t, "s3cret", "")
	log := logger.NewNop()
	gw := service.NewGateway("s3cret", service.Deps{
		Limiter:    ratelimit.New(ts.store, ratelimit.Config{}, log),
		Resolver:   tenant.NewResolver(ts.store, ts.backend, tenant.Config{}, log),
		Recorder:   interaction.NewRecorder(ts.backend, "TELEGRAM", log),
		Dispatcher: ts.dispatcher,
		Notifier:   nopNotifier{},
	}, log)

	update, err := telegram.DecodeUpdate(strings.NewReader(updateBody))
	require.NoError(t, err)
	Poll(gw, telegram.NewConverter(nopBot{}, time.Second, log))(context.Background(), update)

	require.Len(t, ts.backend.outbound, 1)
	assert.Equal(t, "Hello", ts.backend.outbound[0].Content)
}
