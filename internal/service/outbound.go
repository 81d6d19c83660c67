package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/interaction"
	"github.com/capitalize-ai/chat-gateway/internal/model"
)

// OutboundRequest is an agent-originated message.
type OutboundRequest struct {
	ChatID   model.ChatID
	Text     string
	ReplyTo  int
	TenantID string
}

// SendOutbound delivers an agent message and, once delivered, records it as an
// OUTBOUND interaction. It reports whether the platform accepted the message;
// recording failures do not change that.
func (g *Gateway) SendOutbound(ctx context.Context, req OutboundRequest) bool {
	if !g.dispatcher.Send(ctx, req.ChatID, req.Text, req.ReplyTo) {
		return false
	}

	tenantID := req.TenantID
	if tenantID == "" {
		if cfg := g.resolver.Lookup(ctx, req.ChatID); cfg != nil {
			tenantID = cfg.TenantID
		}
	}
	if tenantID == "" {
		g.logger.Warn("outbound message sent to unlinked chat, not recorded",
			zap.String("conversation_id", req.ChatID.String()),
		)
		return true
	}

	g.recorder.Log(ctx, interaction.Entry{
		TenantID:  tenantID,
		Type:      model.InteractionChat,
		Direction: model.DirectionOutbound,
		Content:   req.Text,
		ChatID:    req.ChatID,
	})
	return true
}
