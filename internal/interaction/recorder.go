// Package interaction turns deliveries into backend interaction records and
// fans out notifications about them.
package interaction

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-gateway/internal/model"
	"github.com/capitalize-ai/chat-gateway/pkg/logger"
	"github.com/capitalize-ai/chat-gateway/pkg/metrics"
)

// Store persists interactions and returns their id.
type Store interface {
	CreateInteraction(ctx context.Context, in *model.Interaction) (string, error)
}

// Entry is everything needed to record one interaction.
type Entry struct {
	TenantID   string
	Type       model.InteractionType
	Direction  model.Direction
	Content    string
	ChatID     model.ChatID
	MessageID  int
	Sender     model.Sender
	Attachment *model.Attachment
}

// Recorder builds interactions for one platform and submits them.
type Recorder struct {
	store    Store
	platform string
	logger   *logger.Logger
}

// NewRecorder creates a recorder. platform is used as the interaction channel.
func NewRecorder(store Store, platform string, log *logger.Logger) *Recorder {
	return &Recorder{
		store:    store,
		platform: strings.ToUpper(platform),
		logger:   log.Named("interaction"),
	}
}

// Build returns the interaction payload for e.
func (r *Recorder) Build(e Entry) *model.Interaction {
	typ := e.Type
	if typ == "" {
		typ = model.InteractionChat
	}
	in := &model.Interaction{
		TenantID:  e.TenantID,
		Type:      typ,
		Channel:   r.platform,
		Direction: e.Direction,
		Content:   e.Content,
		Metadata: model.InteractionMetadata{
			Platform:  r.platform,
			ChatID:    e.ChatID,
			MessageID: e.MessageID,
			Username:  e.Sender.Username,
			FirstName: e.Sender.FirstName,
			LastName:  e.Sender.LastName,
		},
	}
	if e.Attachment != nil {
		in.Attachments = []model.Attachment{*e.Attachment}
	}
	return in
}

// Log submits e and returns the new interaction id, or "" if it could not be
// recorded. Failures are logged and never returned.
func (r *Recorder) Log(ctx context.Context, e Entry) string {
	id, err := r.store.CreateInteraction(ctx, r.Build(e))
	metrics.InteractionsLogged.WithLabelValues(string(e.Direction), metrics.ResultLabel(err == nil)).Inc()
	if err != nil {
		r.logger.Error("failed to record interaction",
			zap.String("conversation_id", e.ChatID.String()),
			zap.String("tenant_id", e.TenantID),
			zap.String("direction", string(e.Direction)),
			zap.Error(err),
		)
		return ""
	}

	r.logger.Debug("interaction recorded",
		zap.String("conversation_id", e.ChatID.String()),
		zap.String("tenant_id", e.TenantID),
		zap.String("interaction_id", id),
	)
	return id
}
