package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/middleware"
	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/internal/service"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
)

// Sender delivers agent messages.
type Sender interface {
	SendOutbound(ctx context.Context, req service.OutboundRequest) bool
}

// SendHandler handles the agent send endpoint.
type SendHandler struct {
	sender Sender
	logger *logger.Logger
}

// NewSendHandler creates a new send handler.
func NewSendHandler(sender Sender, log *logger.Logger) *SendHandler {
	return &SendHandler{sender: sender, logger: log.Named("send")}
}

// Send handles POST /send
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ChatID == nil {
		writeError(w, http.StatusBadRequest, "Missing field: chatId")
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "Missing field: text")
		return
	}
	if err := middleware.ValidateChatID(*req.ChatID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageText(*req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok := h.sender.SendOutbound(r.Context(), service.OutboundRequest{
		ChatID:   *req.ChatID,
		Text:     *req.Text,
		ReplyTo:  req.ReplyToMessageID,
		TenantID: middleware.GetTenantID(r.Context()),
	})
	if !ok {
		h.logger.Warn("agent message not delivered",
			zap.String("conversation_id", req.ChatID.String()),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, model.SendMessageResponse{Status: "sent"})
}
