package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/internal/telegram"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

const maxUpdateBytes = 1 << 20

// Pipeline processes inbound deliveries.
type Pipeline interface {
	Authenticate(provided string) (service.Result, bool)
	Process(ctx context.Context, msg *model.InboundMessage) service.Result
}

// Converter maps platform updates onto inbound messages.
type Converter interface {
	Convert(update *tgbotapi.Update) *model.InboundMessage
}

// WebhookHandler receives platform deliveries.
type WebhookHandler struct {
	pipeline  Pipeline
	converter Converter
	logger    *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(pipeline Pipeline, converter Converter, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline:  pipeline,
		converter: converter,
		logger:    log.Named("webhook"),
	}
}

// Receive handles POST /webhook/{scope}
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	if _, ok := h.pipeline.Authenticate(r.Header.Get(telegram.SecretHeader)); !ok {
		h.logger.Warn("invalid webhook secret",
			zap.String("scope", scope),
			zap.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusForbidden, "Invalid secret")
		return
	}

	update, err := telegram.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	res := h.pipeline.Process(r.Context(), h.converter.Convert(update))
	h.logger.Debug("webhook processed",
		zap.String("scope", scope),
		zap.Int("update_id", update.UpdateID),
		zap.String("outcome", string(res.Outcome)),
		zap.String("interaction_id", res.InteractionID),
	)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Poll adapts the pipeline to long-polled updates, where no secret applies.
func Poll(pipeline Pipeline, converter Converter) telegram.UpdateHandler {
	return func(ctx context.Context, update *tgbotapi.Update) {
		pipeline.Process(ctx, converter.Convert(update))
	}
}
