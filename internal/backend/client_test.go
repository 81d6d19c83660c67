package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", APIKey: "secret-key", Platform: "TELEGRAM", Timeout: 2 * time.Second}, logger.NewNop())
}

func TestGetChatConfig(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/internal/telegram/chat/42/config", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"tenantId":"t-1","welcomeMessage":"Hi!","autoReplyMessage":"Thanks"}`))
	})

	cfg, err := client.GetChatConfig(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "t-1", cfg.TenantID)
	assert.Equal(t, "Hi!", cfg.WelcomeMessage)
	assert.True(t, cfg.AutoReplyEnabled, "auto reply defaults to enabled when omitted")
	assert.Equal(t, "Thanks", cfg.AutoReplyMessage)
}

func TestGetChatConfigAutoReplyDisabled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tenantId":"t-1","autoReplyEnabled":false}`))
	})

	cfg, err := client.GetChatConfig(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, cfg.AutoReplyEnabled)
}

func TestGetChatConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":"no link"}`, ErrNotFound},
		{"empty tenant", http.StatusOK, `{}`, ErrNotFound},
		{"server error", http.StatusBadGateway, ``, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.GetChatConfig(context.Background(), "42")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second}, logger.NewNop())
	_, err := client.GetChatConfig(context.Background(), "42")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLinkChat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/internal/telegram/chat/link", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(42), body["chatId"])
		assert.Equal(t, "private", body["chatType"])
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "Alice", body["firstName"])
		assert.Nil(t, body["lastName"])

		_, _ = w.Write([]byte(`{"tenantId":"t-9","autoReplyEnabled":true}`))
	})

	cfg, err := client.LinkChat(context.Background(), "42", model.Sender{Username: "alice", FirstName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "t-9", cfg.TenantID)
}

func TestCreateInteraction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/telegram/interactions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "t-1", body["tenantId"])
		assert.Equal(t, "INBOUND", body["direction"])
		meta := body["metadata"].(map[string]any)
		assert.Equal(t, float64(42), meta["telegramChatId"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"int-7"}`))
	})

	id, err := client.CreateInteraction(context.Background(), &model.Interaction{
		TenantID:  "t-1",
		Type:      model.InteractionChat,
		Channel:   "TELEGRAM",
		Direction: model.DirectionInbound,
		Content:   "Hello",
		Metadata:  model.InteractionMetadata{Platform: "TELEGRAM", ChatID: "42", MessageID: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "int-7", id)
}

func TestCreateInteractionNumericID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1234}`))
	})

	id, err := client.CreateInteraction(context.Background(), &model.Interaction{TenantID: "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "1234", id)
}

func TestCreateInteractionRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.CreateInteraction(context.Background(), &model.Interaction{TenantID: "t-1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestNotify(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/internal/telegram/notify", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"tenantId":      "t-1",
			"chatId":        float64(42),
			"interactionId": "int-7",
			"event":         "new_message",
		}, body)
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.Notify(context.Background(), model.InteractionEvent{
		ID:            "ev-1",
		TenantID:      "t-1",
		ChatID:        "42",
		InteractionID: "int-7",
		Event:         model.EventTypeNewMessage,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "backend", client.Name())
}
