// Package backend is the HTTP client for the CRM backend's internal chat API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
	"github.com/capitalize-ai/chat-gateway/pkg/tracing"
)

var (
	// ErrNotFound means the backend has no tenant for the conversation.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable means the backend could not be reached or failed.
	ErrUnavailable = errors.New("backend: unavailable")
)

const apiKeyHeader = "X-API-Key"

// Config holds backend client settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Platform string
	Timeout  time.Duration
}

// Client talks to /api/internal/<platform>/... on the backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// New creates a backend client.
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	platform := strings.ToLower(cfg.Platform)
	if platform == "" {
		platform = "telegram"
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/api/internal/" + platform,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.Named("backend"),
	}
}

type tenantConfigResponse struct {
	TenantID         string `json:"tenantId"`
	WelcomeMessage   string `json:"welcomeMessage"`
	AutoReplyEnabled *bool  `json:"autoReplyEnabled"`
	AutoReplyMessage string `json:"autoReplyMessage"`
}

func (r *tenantConfigResponse) toModel() (*model.TenantConfig, error) {
	if r.TenantID == "" {
		return nil, ErrNotFound
	}
	cfg := &model.TenantConfig{
		TenantID:         r.TenantID,
		WelcomeMessage:   r.WelcomeMessage,
		AutoReplyEnabled: true,
		AutoReplyMessage: r.AutoReplyMessage,
	}
	if r.AutoReplyEnabled != nil {
		cfg.AutoReplyEnabled = *r.AutoReplyEnabled
	}
	return cfg, nil
}

// GetChatConfig fetches the tenant configuration linked to a conversation.
func (c *Client) GetChatConfig(ctx context.Context, chatID model.ChatID) (*model.TenantConfig, error) {
	var resp tenantConfigResponse
	status, err := c.do(ctx, "get_chat_config", http.MethodGet, "/chat/"+chatID.String()+"/config", nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get chat config: unexpected status %d", status)
	}
	return resp.toModel()
}

type linkRequest struct {
	ChatID    model.ChatID `json:"chatId"`
	ChatType  string       `json:"chatType"`
	Username  *string      `json:"username"`
	FirstName *string      `json:"firstName"`
	LastName  *string      `json:"lastName"`
}

// LinkChat asks the backend to associate a conversation with a tenant, matching or
// creating a customer from the sender details. The call is an upsert.
func (c *Client) LinkChat(ctx context.Context, chatID model.ChatID, sender model.Sender) (*model.TenantConfig, error) {
	req := linkRequest{
		ChatID:    chatID,
		ChatType:  "private",
		Username:  optional(sender.Username),
		FirstName: optional(sender.FirstName),
		LastName:  optional(sender.LastName),
	}

	var resp tenantConfigResponse
	status, err := c.do(ctx, "link_chat", http.MethodPost, "/chat/link", req, &resp)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		return resp.toModel()
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("link chat: unexpected status %d", status)
	}
}

type interactionResponse struct {
	ID json.RawMessage `json:"id"`
}

// CreateInteraction persists an interaction and returns its backend id.
func (c *Client) CreateInteraction(ctx context.Context, in *model.Interaction) (string, error) {
	var resp interactionResponse
	status, err := c.do(ctx, "create_interaction", http.MethodPost, "/interactions", in, &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("create interaction: unexpected status %d", status)
	}

	id := rawID(resp.ID)
	if id == "" {
		return "", errors.New("create interaction: response carried no id")
	}
	return id, nil
}

type notifyRequest struct {
	TenantID      string          `json:"tenantId"`
	ChatID        model.ChatID    `json:"chatId"`
	InteractionID string          `json:"interactionId"`
	Event         model.EventType `json:"event"`
}

// Name identifies the client as a notification sink.
func (c *Client) Name() string { return "backend" }

// Notify signals the backend that a new interaction exists for a conversation.
func (c *Client) Notify(ctx context.Context, ev model.InteractionEvent) error {
	req := notifyRequest{
		TenantID:      ev.TenantID,
		ChatID:        ev.ChatID,
		InteractionID: ev.InteractionID,
		Event:         ev.Event,
	}
	status, err := c.do(ctx, "notify", http.MethodPost, "/notify", req, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("notify: unexpected status %d", status)
	}
	return nil
}

// do performs one backend call. Transport failures and 5xx responses are
// reported as ErrUnavailable; other statuses are returned to the caller. out is
// decoded only for 2xx responses.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) (int, error) {
	ctx, span := tracing.Tracer().Start(ctx, "backend."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("backend.path", path),
	)

	start := time.Now()
	status, err := c.roundTrip(ctx, method, path, body, out)
	metrics.RecordBackendCall(operation, statusLabel(status, err), time.Since(start).Seconds())

	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("backend call failed",
			zap.String("operation", operation),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return status, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func statusLabel(status int, err error) string {
	if status == 0 && err != nil {
		return "error"
	}
	return strconv.Itoa(status)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// rawID accepts either a JSON string or number id.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
